package audit

import (
	"context"

	"github.com/nerrad567/pihome/internal/entity"
)

// Change sources.
const (
	SourceCore = "core"
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

type sourceKey struct{}

// WithSource tags ctx so changes made with it are attributed to source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source carried by ctx, or SourceCore.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceCore
}

// Logger defines the logging interface used by the audit package.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder turns entity changes into audit entries.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo. A nil logger discards
// write failures.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// OnChange records c. It matches entity.ChangeFunc.
func (r *Recorder) OnChange(ctx context.Context, c entity.Change) {
	e := &Entry{
		Op:       c.Op,
		Kind:     c.Kind,
		EntityID: c.ID,
		Source:   SourceFrom(ctx),
		Details:  details(c),
	}

	// The change has already committed; a cancelled request must not
	// drop its record.
	if err := r.repo.Create(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warn("failed to record audit entry",
			"op", c.Op,
			"kind", c.Kind,
			"id", c.ID,
			"error", err,
		)
	}
}

func details(c entity.Change) map[string]any {
	if c.Entity == nil {
		return nil
	}
	if c.Op == entity.ChangeValueSet {
		if d, ok := c.Entity.(*entity.Device); ok {
			return map[string]any{"value": d.Value}
		}
	}
	return entity.ClientView(c.Entity).Map()
}
