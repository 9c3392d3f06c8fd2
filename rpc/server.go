// Package rpc exposes the local node over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrischabot/shardeum/core/dispatch"
	"github.com/chrischabot/shardeum/core/host"
	"github.com/chrischabot/shardeum/core/types"
)

const maxBodyBytes = 1 << 20

// Node is the subset of the local host the HTTP surface drives.
type Node interface {
	Validate(ctx context.Context, ttx types.TimestampedTx, app *dispatch.AppData) types.ValidationResult
	Inject(ctx context.Context, ttx types.TimestampedTx) (host.Receipt, error)
	GetLocalOrRemoteAccount(ctx context.Context, id string) (*types.WrappedAccount, error)
}

// ReadyFunc reports whether bootstrap has finished.
type ReadyFunc func() bool

// Config captures the dependencies required to construct the server.
type Config struct {
	Node           Node
	Ready          ReadyFunc
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// Server serves the transaction and account endpoints.
type Server struct {
	node    Node
	ready   ReadyFunc
	logger  *slog.Logger
	timeout time.Duration
	router  http.Handler
}

// New constructs the HTTP router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	srv := &Server{
		node:    cfg.Node,
		ready:   cfg.Ready,
		logger:  cfg.Logger,
		timeout: cfg.RequestTimeout,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.timeout))

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/tx", func(tx chi.Router) {
		tx.Post("/validate", s.ValidateTx)
		tx.Post("/inject", s.InjectTx)
	})
	r.Get("/account/{id}", s.GetAccount)
	return r
}

type validateRequest struct {
	AppData *dispatch.AppData `json:"appData,omitempty"`
}

// Health reports 200 once bootstrap has completed and 503 before.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "bootstrapping"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateTx runs the dispatcher checks without applying anything. The body
// is a timestamped transaction with an optional appData object.
func (s *Server) ValidateTx(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var ttx types.TimestampedTx
	if err := json.Unmarshal(body, &ttx); err != nil {
		http.Error(w, "invalid transaction: "+err.Error(), http.StatusBadRequest)
		return
	}
	var req validateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid appData: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.node.Validate(r.Context(), ttx, req.AppData))
}

// InjectTx validates and applies a transaction.
func (s *Server) InjectTx(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var ttx types.TimestampedTx
	if err := json.Unmarshal(body, &ttx); err != nil {
		http.Error(w, "invalid transaction: "+err.Error(), http.StatusBadRequest)
		return
	}
	receipt, err := s.node.Inject(r.Context(), ttx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, receipt)
	case errors.Is(err, host.ErrRejected):
		writeJSON(w, http.StatusUnprocessableEntity, receipt)
	case errors.Is(err, host.ErrNotExecutable):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		s.logger.Error("inject failed", slog.String("txId", receipt.TxID), slog.Any("error", err))
		http.Error(w, "failed to apply transaction", http.StatusInternalServerError)
	}
}

// GetAccount returns the wrapped account stored under id.
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		http.Error(w, "missing account id", http.StatusBadRequest)
		return
	}
	account, err := s.node.GetLocalOrRemoteAccount(r.Context(), id)
	if err != nil {
		s.logger.Error("account lookup failed", slog.String("account", id), slog.Any("error", err))
		http.Error(w, "failed to load account", http.StatusInternalServerError)
		return
	}
	if account == nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, types.NewWrappedResponse(id, false, account))
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
