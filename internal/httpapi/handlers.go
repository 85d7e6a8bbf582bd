package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"groupgate.org/internal/audit"
	"groupgate.org/internal/authn"
	"groupgate.org/internal/events"
	"groupgate.org/internal/groups"
	"groupgate.org/internal/obs"
	"groupgate.org/internal/ratelimit"
)

const serviceName = "groupgate-api"

// ReadyChecker reports whether dependencies (the database) are reachable.
type ReadyChecker interface {
	Check(ctx context.Context) error
}

type alwaysReady struct{}

func (alwaysReady) Check(context.Context) error { return nil }

// API is the HTTP layer in front of groups.Service.
type API struct {
	svc      *groups.Service
	tokens   *authn.Tokens
	hub      *events.Hub
	audit    *audit.Logger
	log      *zap.Logger
	ready    ReadyChecker
	limiter  ratelimit.Limiter
	validate *validator.Validate
	version  string
	maxBody  int64
	origins  []string
	proxies  []netip.Prefix
}

type Option func(*API)

func WithHub(hub *events.Hub) Option { return func(a *API) { a.hub = hub } }

func WithAudit(l *audit.Logger) Option { return func(a *API) { a.audit = l } }

func WithLogger(log *zap.Logger) Option { return func(a *API) { a.log = log } }

func WithReadiness(rc ReadyChecker) Option {
	return func(a *API) {
		if rc != nil {
			a.ready = rc
		}
	}
}

// WithRateLimiter enables per-client throttling; nil disables it.
func WithRateLimiter(l ratelimit.Limiter) Option { return func(a *API) { a.limiter = l } }

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

func WithMaxBodyBytes(n int64) Option { return func(a *API) { a.maxBody = n } }

func WithAllowedOrigins(origins []string) Option { return func(a *API) { a.origins = origins } }

// WithTrustedProxies names the peers allowed to set X-Forwarded-For.
func WithTrustedProxies(prefixes []netip.Prefix) Option { return func(a *API) { a.proxies = prefixes } }

func New(svc *groups.Service, tokens *authn.Tokens, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, errors.New("groups service is required")
	}
	if tokens == nil {
		return nil, errors.New("token verifier is required")
	}
	a := &API{
		svc:      svc,
		tokens:   tokens,
		log:      zap.NewNop(),
		ready:    alwaysReady{},
		validate: validator.New(),
		version:  "dev",
		maxBody:  1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = audit.New(a.log)
	}
	return a, nil
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, ClientAddr(a.proxies), LoggingJSON(a.log), obs.Instrument, SecurityHeaders, CORS(a.origins))
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBody) })
	if a.limiter != nil {
		r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.limiter, a.log) })
	}

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1/groups", func(r chi.Router) {
		r.Use(Authenticate(a.tokens))

		r.Post("/", a.createGroup)
		r.Get("/", a.listMyGroups)

		r.Route("/{groupID}", func(r chi.Router) {
			r.Get("/", a.getGroup)
			r.Put("/", a.updateGroup)
			r.Delete("/", a.deleteGroup)

			r.Get("/members", a.listMembers)
			r.Post("/members", a.addMember)
			r.Delete("/members/{userID}", a.removeMember)
			r.Put("/members/{userID}/role", a.updateMemberRole)
			r.Delete("/membership", a.leaveGroup)

			r.Get("/roles", a.listRoles)
			r.Post("/roles", a.createRole)
			r.Get("/roles/{roleID}", a.getRole)
			r.Put("/roles/{roleID}", a.updateRole)
			r.Delete("/roles/{roleID}", a.deleteRole)
			r.Put("/roles/{roleID}/permissions", a.updatePermissions)
			r.Put("/roles/{roleID}/priority", a.updatePriority)

			r.Get("/join-requests", a.listJoinRequests)
			r.Post("/join-requests", a.createJoinRequest)
			r.Put("/join-requests/{requestID}/approve", a.approveJoinRequest)
			r.Put("/join-requests/{requestID}/reject", a.rejectJoinRequest)

			r.Get("/events", a.watchEvents)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        serviceName,
		"time":        time.Now().UTC().Format(time.RFC3339),
		"version":     a.version,
		"permissions": groups.Catalog(),
	})
}

// actor returns the authenticated user id or writes a 401.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := authn.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

// bind decodes and validates a request payload, writing a 400 on failure.
func (a *API) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// handleGroupError maps domain errors to HTTP statuses.
func (a *API) handleGroupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authn.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, groups.ErrForbidden):
		a.auditDenied(r, err)
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, groups.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, groups.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, groups.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, groups.ErrConfiguration):
		a.log.Error("group misconfigured", zap.String("request_id", RequestIDFromContext(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		a.log.Error("group operation failed", zap.String("request_id", RequestIDFromContext(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "group operation failed")
	}
}

func (a *API) auditDenied(r *http.Request, err error) {
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"reason": err.Error(),
	}
	if gid := chi.URLParam(r, "groupID"); gid != "" {
		fields["group_id"] = gid
	}
	_ = a.audit.LogEvent(r.Context(), "authz.denied", fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
