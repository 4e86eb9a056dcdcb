// Package requestid tags outbound API calls with a correlation id.
//
// Every request sent through Transport carries an X-Request-ID header. The id
// comes from the request context when the caller placed one there with
// WithContext, otherwise a fresh UUIDv4 is generated. LoggerExtractor lets
// pkg/logger put the same id on log records written with that context.
package requestid

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
)

var validIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type contextKey struct{}

// New returns a fresh request id.
func New() string {
	return uuid.New().String()
}

func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// Ensure returns ctx carrying a valid request id, generating one if needed.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); isValid(id) {
		return ctx, id
	}
	id := New()
	return WithContext(ctx, id), id
}

// LoggerExtractor returns a context extractor for pkg/logger.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if requestID := FromContext(ctx); requestID != "" {
			return slog.String("request_id", requestID), true
		}
		return slog.Attr{}, false
	}
}

// Transport sets the X-Request-ID header on every outbound request.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base; nil means http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	id := req.Header.Get(Header)
	if !isValid(id) {
		_, id = Ensure(req.Context())
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Header.Set(Header, id)
	return base.RoundTrip(out)
}

func isValid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
