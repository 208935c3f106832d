package logger_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/langowen/ratesync/internal/currency_fetcher/ports/http/public/middleware/logger"
	"github.com/stretchr/testify/require"
)

func TestNew_PassesThrough(t *testing.T) {
	t.Parallel()

	h := logger.New()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brew"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "brew", rec.Body.String())
}
