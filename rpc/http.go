package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"assetescrow/config"
	"assetescrow/core"
	"assetescrow/gateway/middleware"
	"assetescrow/observability"
	"assetescrow/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

// ServerConfig configures the JSON-RPC server.
type ServerConfig struct {
	Logger *slog.Logger
	// Auth verifies bearer tokens. Without it administrative methods are
	// refused.
	Auth       *middleware.Authenticator
	AdminScope string
	RateLimit  middleware.RateLimit
	// Registry, when set together with Auth, is mounted under /registry and
	// requires the admin scope. Development deployments serve the in-memory
	// ownership registry this way.
	Registry          http.Handler
	LogRequests       bool
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type handlerFunc func(ctx context.Context, req *RPCRequest) (interface{}, *RPCError)

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	escrow  *modules.EscrowModule
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	methods map[string]handlerFunc
}

func NewServer(node *core.Node, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "rpc"))
	if cfg.AdminScope == "" {
		cfg.AdminScope = config.DefaultAdminScope
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("assetescrow/rpc"),
		escrow:  modules.NewEscrowModule(node),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, logger),
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "escrowd", LogRequests: cfg.LogRequests}, logger),
	}
	s.limiter.OnReject(func(string) { observability.RPC().RecordThrottle("rate_limit") })
	s.methods = s.routes()
	if cfg.Registry != nil && !s.registryMounted() {
		logger.Warn("ownership registry not mounted: it requires authentication to be configured")
	}
	return s, nil
}

// registryMounted reports whether the development registry is served. It
// trusts the sender named in each request, so it is only exposed behind a
// token carrying the admin scope.
func (s *Server) registryMounted() bool {
	return s.cfg.Registry != nil && s.cfg.Auth != nil && s.cfg.Auth.Enabled()
}

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"escrow_register":      s.handleRegister,
		"escrow_deposit":       s.handleDeposit,
		"escrow_withdrawAll":   s.handleWithdrawAll,
		"escrow_getBalance":    s.handleGetBalance,
		"escrow_listUsers":     s.handleListUsers,
		"escrow_listAccounts":  s.handleListAccounts,
		"escrow_getUser":       s.handleGetUser,
		"escrow_placeAsset":    s.handlePlaceAsset,
		"escrow_buyAsset":      s.handleBuyAsset,
		"escrow_getAsset":      s.handleGetAsset,
		"escrow_listAssets":    s.handleListAssets,
		"escrow_reset":         s.handleReset,
		"escrow_version":       s.handleVersion,
		"escrow_transferPhase": s.handleTransferPhase,
		"escrow_listReceipts":  s.handleListReceipts,
		"escrow_listEvents":    s.handleListEvents,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	r.Group(func(r chi.Router) {
		r.Use(s.obs.Middleware("rpc"))
		r.Use(s.limiter.Middleware())
		if s.cfg.Auth != nil && s.cfg.Auth.Enabled() {
			r.Use(s.cfg.Auth.Optional())
		}
		r.Post("/rpc", s.handle)
	})
	if s.registryMounted() {
		r.Group(func(r chi.Router) {
			r.Use(s.cfg.Auth.Middleware(s.cfg.AdminScope))
			r.Mount("/registry", s.cfg.Registry)
		})
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	status := rpcErr.status
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

// handle decodes one JSON-RPC request and dispatches it.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, nil, newError(status, codeInvalidRequest, message, err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, nil, newError(http.StatusBadRequest, codeInvalidRequest, "request body required", nil))
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, nil, newError(http.StatusBadRequest, codeParseError, "invalid JSON payload", err.Error()))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, newError(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC))
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, newError(http.StatusBadRequest, codeInvalidRequest, "method required", nil))
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		observability.RPC().Observe("unknown", codeMethodNotFound, time.Since(started))
		writeError(w, req.ID, newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method))
		return
	}

	ctx, span := s.tracer.Start(r.Context(), req.Method, trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	result, rpcErr := handler(ctx, req)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		span.SetAttributes(attribute.Int("rpc.error_code", code))
	}
	span.End()
	observability.RPC().Observe(req.Method, code, time.Since(started))

	if rpcErr != nil {
		if rpcErr.status >= http.StatusInternalServerError {
			s.logger.Error("rpc call failed", slog.String("method", req.Method), slog.Any("data", rpcErr.Data))
		}
		writeError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

// decodeParams unmarshals the single params object of req into out.
func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return newError(http.StatusBadRequest, codeEscrowInvalidParams, "invalid_params", "exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return newError(http.StatusBadRequest, codeEscrowInvalidParams, "invalid_params", err.Error())
	}
	return nil
}

// optionalParam returns the first params entry or nil.
func optionalParam(req *RPCRequest) json.RawMessage {
	if len(req.Params) == 0 {
		return nil
	}
	return req.Params[0]
}

func moduleError(modErr *modules.ModuleError) *RPCError {
	return newError(modErr.HTTPStatus, modErr.Code, modErr.Message, modErr.Data)
}
