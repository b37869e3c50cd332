package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/phrazzld/cardfeed/internal/ciutil"
)

// CIHandler is a JSON slog.Handler that tags every record with the CI run
// it belongs to, so interleaved test output can be traced to a build.
type CIHandler struct {
	handler  slog.Handler
	metadata []slog.Attr
}

// NewCIHandler wraps a JSON handler writing to out. Outside CI it adds
// nothing but nanosecond timestamps.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CIHandler{
		handler:  slog.NewJSONHandler(out, opts),
		metadata: ciMetadata(),
	}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs), metadata: h.metadata}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name), metadata: h.metadata}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	enhanced := record.Clone()
	enhanced.AddAttrs(h.metadata...)
	enhanced.AddAttrs(slog.Int64("timestamp_nano", enhanced.Time.UnixNano()%int64(time.Second)))
	return h.handler.Handle(ctx, enhanced)
}

// ciEnvVars are the variables whose values are attached to every record.
var ciEnvVars = map[string]string{
	"GITHUB_RUN_ID":     "ci_run_id",
	"GITHUB_SHA":        "ci_commit",
	"GITHUB_REF_NAME":   "ci_ref",
	"GITHUB_WORKFLOW":   "ci_workflow",
	"GITHUB_REPOSITORY": "ci_repository",
}

func ciMetadata() []slog.Attr {
	if !ciutil.IsCI() {
		return nil
	}
	attrs := []slog.Attr{slog.String("ci", "true")}
	for env, key := range ciEnvVars {
		if v := os.Getenv(env); v != "" {
			attrs = append(attrs, slog.String(key, v))
		}
	}
	return attrs
}
