// Package rest exposes paginated listings over HTTP.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/schema"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/pager"
	"github.com/syntrixbase/pager/internal/server"
	"github.com/syntrixbase/pager/pkg/model"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeCanceled      = "CANCELED"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

const (
	bindParamPrefix        = "bind."
	strategyResponseHeader = "X-Pager-Strategy"
)

// Lister serves one page of a namespace.
type Lister interface {
	Execute(ctx context.Context, strategy pager.Strategy, ns *keyspace.Namespace, bindings map[string]string, req model.PageRequest) (*pager.Result, error)
}

// Router is satisfied by *http.ServeMux and *server.Server.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

type Handler struct {
	lister      Lister
	namespaces  map[string]*keyspace.Namespace
	defaultSize int
	metrics     http.Handler
	logger      *slog.Logger
	decoder     *schema.Decoder
}

// NewHandler creates a handler serving the given namespaces. metrics may be nil.
func NewHandler(lister Lister, namespaces map[string]*keyspace.Namespace, defaultSize int, metrics http.Handler, logger *slog.Logger) *Handler {
	if lister == nil {
		panic("lister cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if defaultSize <= 0 {
		defaultSize = 20
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Handler{
		lister:      lister,
		namespaces:  namespaces,
		defaultSize: defaultSize,
		metrics:     metrics,
		logger:      logger.With("component", "rest"),
		decoder:     decoder,
	}
}

func (h *Handler) RegisterRoutes(r Router) {
	r.Handle("GET /api/v1/namespaces", http.HandlerFunc(h.handleNamespaces))
	r.Handle("GET /api/v1/namespaces/{namespace}/documents", http.HandlerFunc(h.handleList))
	r.Handle("GET /health", http.HandlerFunc(h.handleHealth))
	if h.metrics != nil {
		r.Handle("GET /metrics", h.metrics)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	out := make([]NamespaceResponse, 0, len(h.namespaces))
	for name, ns := range h.namespaces {
		out = append(out, NamespaceResponse{Name: name, Template: ns.String(), Components: ns.Components()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	server.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("namespace")
	ns, ok := h.namespaces[name]
	if !ok {
		server.WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown namespace")
		return
	}

	values := r.URL.Query()
	var q ListQuery
	if err := h.decoder.Decode(&q, values); err != nil {
		h.logger.Warn("Invalid query parameters", "namespace", name, "error", err,
			"request_id", server.GetRequestID(r.Context()))
		server.WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid query parameters")
		return
	}

	req, strategy, err := q.pageRequest(h.defaultSize)
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	res, err := h.lister.Execute(r.Context(), strategy, ns, bindings(values), req)
	if err != nil {
		h.writeListError(w, r, err)
		return
	}

	w.Header().Set(strategyResponseHeader, string(res.Strategy))
	server.WriteJSON(w, http.StatusOK, ListResponse{Page: res.Page, Strategy: string(res.Strategy)})
}

// bindings collects the bind.<component> parameters. Repeated parameters keep
// the first value.
func bindings(values map[string][]string) map[string]string {
	out := make(map[string]string)
	for k, v := range values {
		component, ok := strings.CutPrefix(k, bindParamPrefix)
		if !ok || len(v) == 0 {
			continue
		}
		out[component] = v[0]
	}
	return out
}

func (h *Handler) writeListError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrInvalidBinding):
		server.WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, model.ErrStoreTimeout),
		errors.Is(err, model.ErrCanceled) && errors.Is(r.Context().Err(), context.DeadlineExceeded):
		server.WriteError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "Listing timed out")
	case errors.Is(err, model.ErrCanceled):
		server.WriteError(w, server.StatusClientClosedRequest, ErrCodeCanceled, "Request canceled")
	default:
		h.logger.Error("Listing failed", "error", err, "request_id", server.GetRequestID(r.Context()))
		server.WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
	}
}
