package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"galnav/internal/config"
	"galnav/internal/db"
	"galnav/internal/engine"
	"galnav/internal/graph"
	"galnav/internal/route"
	"galnav/internal/spatial"
)

const (
	maxAutocomplete = 15
	maxReachJumps   = 10
	maxBodyBytes    = 1 << 16
)

// Server is the HTTP API in front of the route planner.
type Server struct {
	cfg      *config.Config
	db       *db.DB
	planner  *engine.Planner
	limiter  *rateLimiter
	validate *validator.Validate

	mu    sync.RWMutex
	route config.RouteConfig // live route preferences, editable via /api/config
}

// NewServer creates a Server backed by database. Stored route preferences
// override the configured defaults.
func NewServer(cfg *config.Config, database *db.DB) *Server {
	s := &Server{
		cfg:      cfg,
		db:       database,
		planner:  engine.NewPlanner(database, cfg.Oracle),
		validate: newValidator(),
		route:    database.LoadRouteConfig(context.Background(), cfg.Route),
	}
	if cfg.Server.RatePerSecond > 0 {
		s.limiter = newRateLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst)
	}
	return s
}

// Planner exposes the planner, e.g. to load the index in the background.
func (s *Server) Planner() *engine.Planner { return s.planner }

// SetIndex is called when the in-memory index finishes loading.
func (s *Server) SetIndex(idx *spatial.Index) {
	s.planner.SetIndex(idx)
}

// Close stops background work.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.close()
	}
}

// Handler returns the HTTP handler with all API routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("GET /api/systems/autocomplete", s.handleAutocomplete)
	mux.HandleFunc("GET /api/systems/{name}", s.handleGetSystem)
	mux.HandleFunc("POST /api/route/find", s.handleRouteFind)
	mux.HandleFunc("POST /api/route/reachable", s.handleReachable)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return corsMiddleware(s.cfg.Server.CORSOrigins, h)
}

func (s *Server) routeConfig() config.RouteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// decodeBody reads a JSON body and runs struct validation on it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// --- Views ---

type systemView struct {
	Address  int64          `json:"address"`
	Name     string         `json:"name"`
	Position graph.Position `json:"position"`
}

func viewSystem(s graph.System) systemView {
	return systemView{Address: s.Addr, Name: s.Name, Position: s.Pos}
}

func viewSystems(systems []graph.System) []systemView {
	out := make([]systemView, len(systems))
	for i, s := range systems {
		out[i] = viewSystem(s)
	}
	return out
}

type configView struct {
	JumpRange       float64 `json:"jump_range"`
	HeuristicWeight float64 `json:"heuristic_weight"`
	MaxExpansions   int     `json:"max_expansions"`
	Workers         int     `json:"workers"`
	TimeoutMS       int64   `json:"timeout_ms"`
}

func viewConfig(c config.RouteConfig) configView {
	return configView{
		JumpRange:       c.JumpRange,
		HeuristicWeight: c.HeuristicWeight,
		MaxExpansions:   c.MaxExpansions,
		Workers:         c.Workers,
		TimeoutMS:       c.Timeout.Milliseconds(),
	}
}

type hopView struct {
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Distance float64 `json:"distance"`
}

type routeResponse struct {
	RequestID   string       `json:"request_id"`
	Found       bool         `json:"found"`
	Truncated   bool         `json:"truncated"`
	From        systemView   `json:"from"`
	To          systemView   `json:"to"`
	JumpRange   float64      `json:"jump_range"`
	Jumps       int          `json:"jumps"`
	Cost        float64      `json:"cost"`
	Distance    float64      `json:"distance"`
	Path        []systemView `json:"path"`
	Hops        []hopView    `json:"hops"`
	Expanded    int          `json:"expanded"`
	OracleCalls int          `json:"oracle_calls"`
	DurationMS  int64        `json:"duration_ms"`
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"ok":      true,
		"planner": s.planner.Status(r.Context()),
		"route":   viewConfig(s.routeConfig()),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, viewConfig(s.routeConfig()))
}

type configPatch struct {
	JumpRange       *float64 `json:"jump_range" validate:"omitempty,gt=0"`
	HeuristicWeight *float64 `json:"heuristic_weight" validate:"omitempty,gte=0"`
	MaxExpansions   *int     `json:"max_expansions" validate:"omitempty,gte=0"`
	Workers         *int     `json:"workers" validate:"omitempty,gte=1,lte=64"`
	TimeoutMS       *int64   `json:"timeout_ms" validate:"omitempty,gte=0"`
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	s.mu.Lock()
	next := s.route
	if patch.JumpRange != nil {
		next.JumpRange = *patch.JumpRange
	}
	if patch.HeuristicWeight != nil {
		next.HeuristicWeight = *patch.HeuristicWeight
	}
	if patch.MaxExpansions != nil {
		next.MaxExpansions = *patch.MaxExpansions
	}
	if patch.Workers != nil {
		next.Workers = *patch.Workers
	}
	if patch.TimeoutMS != nil {
		next.Timeout = time.Duration(*patch.TimeoutMS) * time.Millisecond
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.SaveRouteConfig(r.Context(), next); err != nil {
		s.mu.Unlock()
		log.Printf("[API] SaveRouteConfig error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	s.route = next
	s.mu.Unlock()

	writeJSON(w, viewConfig(next))
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := maxAutocomplete
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxAutocomplete {
			limit = n
		}
	}
	if q == "" {
		writeJSON(w, map[string][]systemView{"systems": {}})
		return
	}
	systems, err := s.planner.Complete(r.Context(), q, limit)
	if err != nil {
		log.Printf("[API] Autocomplete error: %v", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, map[string][]systemView{"systems": viewSystems(systems)})
}

func (s *Server) handleGetSystem(w http.ResponseWriter, r *http.Request) {
	sys, err := s.planner.Resolve(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, engine.ErrUnknownSystem) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("[API] GetSystem error: %v", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, viewSystem(sys))
}

type routeRequest struct {
	From            string   `json:"from" validate:"required"`
	To              string   `json:"to" validate:"required"`
	JumpRange       *float64 `json:"jump_range" validate:"omitempty,gt=0"`
	HeuristicWeight *float64 `json:"heuristic_weight" validate:"omitempty,gte=0"`
	MaxExpansions   *int     `json:"max_expansions" validate:"omitempty,gte=0"`
	Workers         *int     `json:"workers" validate:"omitempty,gte=1,lte=64"`
}

func (s *Server) handleRouteFind(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	params := s.routeConfig()
	if req.JumpRange != nil {
		params.JumpRange = *req.JumpRange
	}
	if req.HeuristicWeight != nil {
		params.HeuristicWeight = *req.HeuristicWeight
	}
	if req.MaxExpansions != nil {
		params.MaxExpansions = *req.MaxExpansions
	}
	if req.Workers != nil {
		params.Workers = *req.Workers
	}

	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)
	log.Printf("[API] RouteFind %s: from=%q to=%q range=%.2f weight=%.2f workers=%d",
		reqID, req.From, req.To, params.JumpRange, params.HeuristicWeight, params.Workers)

	ctx, cancel := s.requestContext(r)
	defer cancel()

	plan, err := s.planner.FindRoute(ctx, req.From, req.To, params)
	if err != nil {
		s.writeSearchError(w, r, reqID, err)
		return
	}

	resp := routeResponse{
		RequestID:   reqID,
		Found:       plan.Found,
		Truncated:   plan.Route.Truncated,
		From:        viewSystem(plan.From),
		To:          viewSystem(plan.To),
		JumpRange:   params.JumpRange,
		Expanded:    plan.Route.Expanded,
		OracleCalls: plan.Route.OracleCalls,
		DurationMS:  plan.Duration.Milliseconds(),
		Path:        []systemView{},
		Hops:        []hopView{},
	}
	if plan.Found {
		resp.Jumps = plan.Route.Jumps()
		resp.Cost = plan.Route.Cost
		resp.Distance = plan.Route.TotalDistance()
		resp.Path = viewSystems(plan.Route.Path)
		for _, h := range plan.Route.Hops() {
			resp.Hops = append(resp.Hops, hopView{From: h.From.Addr, To: h.To.Addr, Distance: h.Distance})
		}
	}
	log.Printf("[API] RouteFind %s: found=%v jumps=%d expanded=%d calls=%d in %v",
		reqID, resp.Found, resp.Jumps, resp.Expanded, resp.OracleCalls, plan.Duration.Round(time.Millisecond))
	writeJSON(w, resp)
}

type reachableRequest struct {
	From      string   `json:"from" validate:"required"`
	JumpRange *float64 `json:"jump_range" validate:"omitempty,gt=0"`
	MaxJumps  int      `json:"max_jumps" validate:"gte=1"`
	Limit     int      `json:"limit" validate:"gte=0,lte=10000"`
}

type reachView struct {
	systemView
	Jumps int `json:"jumps"`
}

func (s *Server) handleReachable(w http.ResponseWriter, r *http.Request) {
	var req reachableRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.MaxJumps > maxReachJumps {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("max_jumps must be at most %d", maxReachJumps))
		return
	}
	jumpRange := s.routeConfig().JumpRange
	if req.JumpRange != nil {
		jumpRange = *req.JumpRange
	}
	limit := req.Limit
	if limit == 0 {
		limit = 1000
	}

	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)
	ctx, cancel := s.requestContext(r)
	defer cancel()

	origin, reach, err := s.planner.Reachable(ctx, req.From, jumpRange, req.MaxJumps, limit)
	if err != nil {
		s.writeSearchError(w, r, reqID, err)
		return
	}
	systems := make([]reachView, len(reach))
	for i, rc := range reach {
		systems[i] = reachView{systemView: viewSystem(rc.Node), Jumps: rc.Jumps}
	}
	writeJSON(w, map[string]interface{}{
		"request_id": reqID,
		"origin":     viewSystem(origin),
		"jump_range": jumpRange,
		"max_jumps":  req.MaxJumps,
		"systems":    systems,
	})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if d := s.cfg.Server.RequestTimeout; d > 0 {
		return context.WithTimeout(r.Context(), d)
	}
	return context.WithCancel(r.Context())
}

// writeSearchError maps planner errors onto status codes: bad input is 400,
// an unknown endpoint 404, a failing oracle 502 and a request that ran out
// of time 504.
func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, reqID string, err error) {
	switch {
	case route.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrUnknownSystem):
		writeError(w, http.StatusNotFound, err.Error())
	case route.IsOracleFailure(err):
		log.Printf("[API] %s: oracle failure: %v", reqID, err)
		writeError(w, http.StatusBadGateway, "spatial lookup failed")
	case r.Context().Err() != nil:
		// Client went away; nobody is listening.
		log.Printf("[API] %s: client canceled", reqID)
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[API] %s: request timed out", reqID)
		writeError(w, http.StatusGatewayTimeout, "search timed out")
	default:
		log.Printf("[API] %s: %v", reqID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
