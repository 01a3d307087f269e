// Package backend is a reference implementation of the authoritative order
// backend the kiosk talks to in connected mode.
//
// It serves the HTTP contract remote.Client speaks, stores orders through a
// remote.Adapter (normally a remote.Simulated) and emits change events on a
// feed.Sink. Policy emulates the row-level permission rules that make real
// backends reject status updates, which is the failure the kiosk's overlay
// exists to absorb.
package backend

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
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/kiosksync/internal/feed"
	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/remote"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Policy is the backend's write permission model.
type Policy struct {
	// APIKey, when set, must be presented as a bearer token.
	APIKey string
	// DenyStatusUpdates rejects every PATCH /orders/{id}/status with 403.
	DenyStatusUpdates bool
}

// Server is the backend HTTP handler.
type Server struct {
	store   remote.Adapter
	sink    feed.Sink
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSink emits change events on every write.
func WithSink(s feed.Sink) Option {
	return func(srv *Server) { srv.sink = s }
}

// WithPolicy sets the permission policy.
func WithPolicy(p Policy) Option {
	return func(srv *Server) { srv.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// WithMetrics exposes the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// WithClock overrides event timestamps.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) { srv.now = now }
}

// NewServer builds the router over store.
func NewServer(store remote.Adapter, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/orders", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.createOrder)
		r.Get("/", s.listOrders)
		r.Get("/{key}", s.getOrder)
		r.Patch("/{id}/status", s.updateStatus)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Policy returns the active permission policy.
func (s *Server) Policy() Policy {
	return s.policy
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.policy.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != s.policy.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload order.Create
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(payload.Items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "order has no items")
		return
	}
	if payload.Fulfillment != "" && payload.Fulfillment != order.FulfillmentPickup && payload.Fulfillment != order.FulfillmentDelivery {
		writeError(w, http.StatusUnprocessableEntity, "unknown fulfillment "+string(payload.Fulfillment))
		return
	}

	created, err := s.store.CreateOrder(r.Context(), payload)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.emit(r.Context(), feed.CollectionOrders, feed.OpInsert, created.ID)
	for range created.Items {
		s.emit(r.Context(), feed.CollectionOrderItems, feed.OpInsert, created.ID)
	}
	s.logger.Info("order created", "order_id", created.ID, "order_number", created.Number)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := remote.DecodeFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.store.ListOrders(r.Context(), filter)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	found, err := s.store.GetOrder(r.Context(), key)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.policy.DenyStatusUpdates {
		s.logger.Warn("status update denied by policy", "order_id", id)
		writeError(w, http.StatusForbidden, "permission denied for table orders")
		return
	}

	var body remote.StatusUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Patch.Status == nil || !body.Patch.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "patch must carry a valid status")
		return
	}

	updated, err := s.store.UpdateOrderStatus(r.Context(), id, body.Patch)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.emit(r.Context(), feed.CollectionOrders, feed.OpUpdate, id)
	s.logger.Info("order status updated", "order_id", id, "status", updated.Status)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) emit(ctx context.Context, collection string, op feed.Op, id string) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, feed.Event{Collection: collection, Op: op, RecordID: id, At: s.now().UTC()})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch remote.KindOf(err) {
	case remote.KindNotFound:
		writeError(w, http.StatusNotFound, "order not found")
	case remote.KindRejected:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("order store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, remote.ErrorBody{Error: msg, Code: strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")})
}
