// Package status serves health and the latest batch report over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/market"
)

// Source is the read side of the engine.
type Source interface {
	LastReport() (engine.Report, bool)
	OpenCandles() []market.Candle
	Quality() []market.QualityRecord
}

type Server struct {
	src     Source
	log     *zap.Logger
	router  *mux.Router
	started time.Time
}

func New(src Source, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{src: src, log: log.Named("status"), router: mux.NewRouter(), started: time.Now()}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/reports/latest", s.handleLatestReport).Methods(http.MethodGet)
	s.router.HandleFunc("/candles/open", s.handleOpenCandles).Methods(http.MethodGet)
	s.router.HandleFunc("/quality", s.handleQuality).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("status server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, _ *http.Request) {
	r, ok := s.src.LastReport()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no batch processed yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, r)
}

// handleOpenCandles accepts optional exchange, symbol and resolution
// filters.
func (s *Server) handleOpenCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out := []market.Candle{}
	for _, c := range s.src.OpenCandles() {
		if !match(q.Get("exchange"), c.Exchange) || !match(q.Get("symbol"), c.Symbol) || !match(q.Get("resolution"), string(c.Resolution)) {
			continue
		}
		out = append(out, c)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuality(w http.ResponseWriter, _ *http.Request) {
	out := s.src.Quality()
	if out == nil {
		out = []market.QualityRecord{}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func match(filter, v string) bool {
	return filter == "" || strings.EqualFold(filter, v)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}
