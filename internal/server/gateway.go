package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"MemeLedger/internal/event"
	"MemeLedger/internal/ingestion"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/query"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxAdminBody = 1 << 20

// AdminEventRequest is the body of POST /v1/admin/events.
type AdminEventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AdminEventResponse acknowledges an injected event.
type AdminEventResponse struct {
	EventType      string `json:"event_type"`
	IdempotencyKey string `json:"idempotency_key"`
}

type routeFunc func(r *http.Request, params map[string]string) (interface{}, error)

type route struct {
	method, pattern, endpoint string
	fn                        routeFunc
}

type gateway struct {
	mux       *runtime.ServeMux
	marshaler runtime.Marshaler
	qs        *query.QueryService
	admin     *ingestion.AdminIngestService
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// NewGatewayMux registers the read API and admin routes on a grpc-gateway
// ServeMux. admin may be nil, which leaves the admin route unregistered.
func NewGatewayMux(
	qs *query.QueryService,
	admin *ingestion.AdminIngestService,
	metrics *observability.Metrics,
	log zerolog.Logger,
) (*runtime.ServeMux, error) {
	g := &gateway{
		mux:       runtime.NewServeMux(),
		marshaler: &runtime.JSONBuiltin{},
		qs:        qs,
		admin:     admin,
		metrics:   metrics,
		log:       log,
	}

	routes := []route{
		{http.MethodGet, "/v1/tokens/{token}", "token", g.getToken},
		{http.MethodGet, "/v1/trades/{id}", "trade", g.getTrade},
		{http.MethodGet, "/v1/positions/{user}/{token}", "position", g.getPosition},
		{http.MethodGet, "/v1/holders/{token}/{holder}", "holder", g.getHolder},
		{http.MethodGet, "/v1/users/{user}", "user", g.getUser},
	}
	if admin != nil {
		routes = append(routes, route{http.MethodPost, "/v1/admin/events", "admin_event", g.injectEvent})
	}

	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.pattern, g.handle(rt.endpoint, rt.fn)); err != nil {
			return nil, err
		}
	}
	return g.mux, nil
}

func (g *gateway) handle(endpoint string, fn routeFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		resp, err := fn(r, params)
		if err != nil {
			st := toStatus(err)
			if st.Code() == codes.Internal {
				g.log.Error().Err(err).Str("endpoint", endpoint).Msg("query failed")
			}
			g.observe(endpoint, st.Code().String(), start)
			runtime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, st.Err())
			return
		}

		g.observe(endpoint, codes.OK.String(), start)
		w.Header().Set("Content-Type", g.marshaler.ContentType(resp))
		buf, err := g.marshaler.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(buf)
	}
}

func (g *gateway) observe(endpoint, code string, start time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.QueryRequests.WithLabelValues(endpoint, code).Inc()
	g.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (g *gateway) getToken(r *http.Request, p map[string]string) (interface{}, error) {
	token, err := address(p, "token")
	if err != nil {
		return nil, err
	}
	return g.qs.GetToken(r.Context(), token)
}

func (g *gateway) getTrade(r *http.Request, p map[string]string) (interface{}, error) {
	return g.qs.GetTrade(r.Context(), p["id"])
}

func (g *gateway) getPosition(r *http.Request, p map[string]string) (interface{}, error) {
	user, err := address(p, "user")
	if err != nil {
		return nil, err
	}
	token, err := address(p, "token")
	if err != nil {
		return nil, err
	}
	return g.qs.GetPosition(r.Context(), user, token)
}

func (g *gateway) getHolder(r *http.Request, p map[string]string) (interface{}, error) {
	token, err := address(p, "token")
	if err != nil {
		return nil, err
	}
	holder, err := address(p, "holder")
	if err != nil {
		return nil, err
	}
	return g.qs.GetHolder(r.Context(), token, holder)
}

func (g *gateway) getUser(r *http.Request, p map[string]string) (interface{}, error) {
	user, err := address(p, "user")
	if err != nil {
		return nil, err
	}
	return g.qs.GetUser(r.Context(), user)
}

func (g *gateway) injectEvent(r *http.Request, _ map[string]string) (interface{}, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var req AdminEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	evt, err := g.admin.Inject(r.Context(), req.Type, req.Payload)
	if err != nil {
		return nil, err
	}
	g.log.Info().
		Str("event_type", evt.EventType().String()).
		Str("key", evt.IdempotencyKey()).
		Msg("admin event applied")
	return &AdminEventResponse{
		EventType:      evt.EventType().String(),
		IdempotencyKey: evt.IdempotencyKey(),
	}, nil
}

func address(p map[string]string, name string) (common.Address, error) {
	v := p[name]
	if !common.IsHexAddress(v) {
		return common.Address{}, status.Errorf(codes.InvalidArgument, "%s: not a hex address: %q", name, v)
	}
	return common.HexToAddress(v), nil
}

// toStatus maps domain errors onto gRPC codes; grpc-gateway turns those
// into HTTP statuses.
func toStatus(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}
	switch {
	case errors.Is(err, state.ErrEntityNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, event.ErrInvalidEvent):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}
