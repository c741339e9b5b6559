package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// MaskValue replaces attribute values that look like secrets.
const MaskValue = "***REDACTED***"

// sensitiveKeys lists attribute keys whose values are always masked.
// Keys are compared case-insensitively.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,

	// OAuth and API credentials
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"client_secret": true,
	"access_token":  true,
	"refresh_token": true,

	// Session
	"session":    true,
	"session_id": true,
	"sid":        true,

	// Credentials
	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// sensitivePatterns flags values that look like secrets regardless of
// the attribute key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// Long bare alphanumeric strings (API keys, hashes)
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
}

// ScrubHandler wraps an slog.Handler and masks secret-looking attribute
// values before the wrapped handler formats them. Because scrubbing
// happens at the record level it applies equally to text and JSON
// output, and to handlers fanned out with slog-multi.
type ScrubHandler struct {
	handler slog.Handler
}

// NewScrubHandler wraps handler. If handler is nil, the returned
// ScrubHandler delegates to slog.Default().Handler().
func NewScrubHandler(handler slog.Handler) *ScrubHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &ScrubHandler{handler: handler}
}

// Enabled reports whether the wrapped handler handles records at the
// given level.
func (h *ScrubHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rebuilds the record with scrubbed attributes and passes it on.
func (h *ScrubHandler) Handle(ctx context.Context, r slog.Record) error {
	scrubbed := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(h.scrubAttr(a))
		return true
	})
	return h.handler.Handle(ctx, scrubbed)
}

// WithAttrs scrubs attrs before handing them to the wrapped handler.
func (h *ScrubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.scrubAttr(a)
	}
	return &ScrubHandler{handler: h.handler.WithAttrs(scrubbed)}
}

// WithGroup returns a handler that scrubs records within the group.
func (h *ScrubHandler) WithGroup(name string) slog.Handler {
	return &ScrubHandler{handler: h.handler.WithGroup(name)}
}

// scrubAttr masks a single attribute, recursing into groups.
func (h *ScrubHandler) scrubAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		scrubbed := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			scrubbed[i] = h.scrubAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if redacted, ok := redactURLPassword(v); ok {
			return slog.String(a.Key, redacted)
		}
		if isSensitiveValue(v) {
			return slog.String(a.Key, MaskValue)
		}
	}

	return a
}

// containsSensitiveKeyword reports whether key embeds a secret-ish word.
// Note: "auth" is matched only exactly (via sensitiveKeys); as a
// substring it would mask every "author" attribute, and authors are a
// core field of crawled content.
func containsSensitiveKeyword(key string) bool {
	sensitiveKeywords := []string{
		"password", "passwd", "secret", "token", "credential",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURLPassword rewrites URL values that embed a password, keeping
// the rest of the URL visible so operators can still tell which proxy
// or endpoint was in use.
func redactURLPassword(value string) (string, bool) {
	if !strings.Contains(value, "://") || !strings.Contains(value, "@") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return "", false
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return "", false
	}
	return u.Redacted(), true
}

// NewLogger creates a text logger writing to w with scrubbed attributes.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//
// The Warn default keeps crawl progress output on the terminal readable;
// pass verbose=true to surface per-page fetch diagnostics.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewScrubHandler(slog.NewTextHandler(w, opts)))
}

// NewTeeLogger creates a logger that writes scrubbed text records to w
// and scrubbed JSON records to the file at path, appending across runs.
// The returned function closes the log file.
func NewTeeLogger(w io.Writer, path string, verbose bool) (*slog.Logger, func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	handler := slogmulti.Fanout(
		slog.NewTextHandler(w, opts),
		slog.NewJSONHandler(file, opts),
	)
	return slog.New(NewScrubHandler(handler)), file.Close, nil
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
