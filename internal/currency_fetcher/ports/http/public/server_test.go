package public_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/langowen/ratesync/internal/currency_fetcher/ports/http/public"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	result    entities.SyncResult
	providers []entities.ProviderStatus
	runs      int
	ctxErr    error
}

func (f *fakeService) Synchronize(ctx context.Context) entities.SyncResult {
	f.runs++
	f.ctxErr = ctx.Err()
	return f.result
}

func (f *fakeService) AvailableProviders() []entities.ProviderStatus {
	return f.providers
}

type fakeResults struct {
	result *entities.SyncResult
	err    error
}

func (f *fakeResults) LastResult(context.Context) (*entities.SyncResult, error) {
	return f.result, f.err
}

type fakeRates struct {
	rates []entities.ExchangeRate
	err   error

	source, target string
}

func (f *fakeRates) ListRates(context.Context) ([]entities.ExchangeRate, error) {
	return f.rates, f.err
}

func (f *fakeRates) GetRate(_ context.Context, source, target string) (*entities.ExchangeRate, error) {
	f.source, f.target = source, target
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rates {
		if r.Source.Code == source && r.Target.Code == target {
			return &r, nil
		}
	}
	return nil, entities.ErrNotFound
}

func serve(t *testing.T, s *public.Server, method, path string) *http.Response {
	t.Helper()

	req := httptest.NewRequestWithContext(t.Context(), method, path, nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	resp := serve(t, public.NewServer(&fakeService{}, &fakeResults{}, &fakeRates{}), http.MethodGet, "/health")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestServer_Synchronize(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{result: entities.SyncResult{
		RunID:         "run-1",
		Success:       true,
		Outcome:       entities.OutcomeClean,
		RatesCreated:  1,
		Errors:        []string{},
		ProvidersUsed: []string{"ECB (European Central Bank)"},
	}}

	// Act
	resp := serve(t, public.NewServer(svc, &fakeResults{}, &fakeRates{}), http.MethodPost, "/synchronize")

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, 1, svc.runs)
	require.NoError(t, svc.ctxErr)

	var got entities.SyncResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, 1, got.RatesCreated)
	require.Equal(t, []string{"ECB (European Central Bank)"}, got.ProvidersUsed)
}

func TestServer_SynchronizeRequiresPost(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	resp := serve(t, public.NewServer(svc, &fakeResults{}, &fakeRates{}), http.MethodGet, "/synchronize")

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Zero(t, svc.runs)
}

func TestServer_GetProviders(t *testing.T) {
	t.Parallel()

	svc := &fakeService{providers: []entities.ProviderStatus{
		{Name: "Fixer.io", Enabled: false},
		{Name: "ECB (European Central Bank)", Enabled: true},
	}}

	resp := serve(t, public.NewServer(svc, &fakeResults{}, &fakeRates{}), http.MethodGet, "/providers")

	var got []entities.ProviderStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, svc.providers, got)
	require.Zero(t, svc.runs)
}

func TestServer_GetLastResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    *fakeResults
		wantStatus int
	}{
		{"found", &fakeResults{result: &entities.SyncResult{RunID: "run-7"}}, http.StatusOK},
		{"never ran", &fakeResults{err: entities.ErrNotFound}, http.StatusNotFound},
		{"store down", &fakeResults{err: errors.New("connection refused")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := serve(t, public.NewServer(&fakeService{}, tt.results, &fakeRates{}), http.MethodGet, "/synchronize/last")

			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	resp := serve(t, public.NewServer(&fakeService{}, &fakeResults{}, &fakeRates{}), http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRespondWithError_Details(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()

	public.RespondWithError(rec, http.StatusBadGateway, "upstream failed", "timeout")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream failed\nDetails: timeout", rec.Body.String())
}

var eurUSD = entities.ExchangeRate{
	ID:        1,
	Source:    entities.Currency{ID: 1, Code: "EUR"},
	Target:    entities.Currency{ID: 2, Code: "USD"},
	Ratio:     1.0845,
	UpdatedAt: time.Date(2024, 10, 17, 16, 0, 0, 0, time.UTC),
}

func TestServer_GetAllRates(t *testing.T) {
	t.Parallel()

	rates := &fakeRates{rates: []entities.ExchangeRate{eurUSD}}

	resp := serve(t, public.NewServer(&fakeService{}, &fakeResults{}, rates), http.MethodGet, "/rates")

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []public.RateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "EUR", got[0].Source)
	require.Equal(t, "USD", got[0].Target)
	require.InDelta(t, 1.0845, got[0].Ratio, 1e-9)
}

func TestServer_GetAllRatesError(t *testing.T) {
	t.Parallel()

	rates := &fakeRates{err: errors.New("pool closed")}

	resp := serve(t, public.NewServer(&fakeService{}, &fakeResults{}, rates), http.MethodGet, "/rates")

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_GetRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"found", "/rates/EUR/USD", http.StatusOK},
		{"lower case codes", "/rates/eur/usd", http.StatusOK},
		{"unknown pair", "/rates/USD/EUR", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rates := &fakeRates{rates: []entities.ExchangeRate{eurUSD}}

			resp := serve(t, public.NewServer(&fakeService{}, &fakeResults{}, rates), http.MethodGet, tt.path)

			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
