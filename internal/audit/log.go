package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"groupgate.org/internal/authn"
	"groupgate.org/internal/groups"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit entries as structured log lines tagged type=audit.
type Logger struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.With(zap.String("type", "audit"))}
}

// LogEvent writes an audit entry enriched with request and actor context.
func (l *Logger) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{zap.String("event", event)}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if actor, ok := authn.ActorFromContext(ctx); ok {
		zf = append(zf, zap.String("user_id", actor))
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	zf = append(zf, zap.Any("fields", copied))
	l.log.Info("audit", zf...)
	return nil
}

// Publish records a committed group change. It lets the audit trail hang
// off the service's event stream.
func (l *Logger) Publish(evt groups.Event) {
	fields := map[string]any{"group_id": evt.GroupID}
	for k, v := range map[string]string{
		"actor_id":   evt.ActorID,
		"subject_id": evt.UserID,
		"role_id":    evt.RoleID,
		"request_id": evt.RequestID,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	ctx := context.Background()
	if evt.ActorID != "" {
		ctx = authn.ContextWithActor(ctx, evt.ActorID)
	}
	_ = l.LogEvent(ctx, string(evt.Type), fields)
}
