package public

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/langowen/ratesync/deploy/config"
	mwLogger "github.com/langowen/ratesync/internal/currency_fetcher/ports/http/public/middleware/logger"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Server struct {
	Server  *http.Server
	service Service
	results ResultReader
	rates   RateReader
}

type RateResponse struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Ratio     float64   `json:"ratio"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewServer(service Service, results ResultReader, rates RateReader) *Server {
	return &Server{
		service: service,
		results: results,
		rates:   rates,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mwLogger.New())
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", s.Health)
	r.Get("/providers", s.GetProviders)
	r.Post("/synchronize", s.Synchronize)
	r.Get("/synchronize/last", s.GetLastResult)
	r.Get("/rates", s.GetAllRates)
	r.Get("/rates/{source}/{target}", s.GetRate)

	return r
}

// StartServer serves until ctx is done; the returned channel is closed once
// the server has shut down.
func StartServer(ctx context.Context, service Service, results ResultReader, rates RateReader, cfg config.HTTPServer) <-chan struct{} {
	server := NewServer(service, results, rates)

	server.Server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	doneChan := make(chan struct{})

	go func() {
		slog.Info("Starting http server", "addr", server.Server.Addr)
		if err := server.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to stop server", "error", err)
		}

		close(doneChan)
	}()

	return doneChan
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) GetProviders(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.service.AvailableProviders())
}

// Synchronize runs a synchronization and answers with its result. The run
// is not canceled when the client goes away.
func (s *Server) Synchronize(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	result := s.service.Synchronize(ctx)

	RespondWithJSON(w, http.StatusOK, result)
}

func (s *Server) GetLastResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.results.LastResult(ctx)
	if errors.Is(err, entities.ErrNotFound) {
		RespondWithError(w, http.StatusNotFound, "no synchronization has run yet")
		return
	}
	if err != nil {
		slog.Error("Failed to read last synchronization", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to read last synchronization", err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

func (s *Server) GetAllRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rates, err := s.rates.ListRates(ctx)
	if err != nil {
		slog.Error("Failed to list rates", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to list rates", err.Error())
		return
	}

	response := make([]RateResponse, len(rates))
	for i, rate := range rates {
		response[i] = toResponse(rate)
	}

	RespondWithJSON(w, http.StatusOK, response)
}

func (s *Server) GetRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	source := strings.ToUpper(chi.URLParam(r, "source"))
	target := strings.ToUpper(chi.URLParam(r, "target"))

	rate, err := s.rates.GetRate(ctx, source, target)
	if errors.Is(err, entities.ErrNotFound) {
		RespondWithError(w, http.StatusNotFound, "rate not found", source+"/"+target)
		return
	}
	if err != nil {
		slog.Error("Failed to read rate", "source", source, "target", target, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to read rate", err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, toResponse(*rate))
}

func toResponse(rate entities.ExchangeRate) RateResponse {
	return RateResponse{
		Source:    rate.Source.Code,
		Target:    rate.Target.Code,
		Ratio:     rate.Ratio,
		UpdatedAt: rate.UpdatedAt,
	}
}

func RespondWithJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func RespondWithError(w http.ResponseWriter, code int, message string, details ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)

	errorText := message
	if len(details) > 0 {
		errorText += "\nDetails: " + details[0]
	}

	if _, err := w.Write([]byte(errorText)); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
