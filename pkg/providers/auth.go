package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	authModeBearer    = "bearer"
	authModeHeaderKey = "header_key"
	authModeQueryKey  = "query_key"
)

// TokenSource returns credential material for request auth.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Source() string
}

type staticTokenSource struct {
	token  string
	source string
}

func NewStaticTokenSource(token, source string) TokenSource {
	return &staticTokenSource{
		token:  strings.TrimSpace(token),
		source: strings.TrimSpace(source),
	}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("token is empty for %s", s.Source())
	}
	return s.token, nil
}

func (s *staticTokenSource) Source() string {
	if s.source != "" {
		return s.source
	}
	return "static"
}

// AuthStrategy applies request auth for provider HTTP calls.
type AuthStrategy interface {
	Mode() string
	Apply(ctx context.Context, req *http.Request) error
}

type bearerAuth struct {
	source TokenSource
}

// NewBearerAuth authorizes via "Authorization: Bearer <token>".
func NewBearerAuth(source TokenSource) AuthStrategy {
	return &bearerAuth{source: source}
}

func (a *bearerAuth) Mode() string {
	return authModeBearer
}

func (a *bearerAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.source.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

type headerKeyAuth struct {
	header string
	source TokenSource
}

// NewHeaderKeyAuth authorizes via a vendor-specific header, e.g. the
// Anthropic "x-api-key" scheme.
func NewHeaderKeyAuth(header string, source TokenSource) AuthStrategy {
	return &headerKeyAuth{header: header, source: source}
}

func (a *headerKeyAuth) Mode() string {
	return authModeHeaderKey
}

func (a *headerKeyAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.source.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(a.header, token)
	return nil
}

type queryKeyAuth struct {
	param  string
	source TokenSource
}

// NewQueryKeyAuth authorizes via a URL query parameter, the Gemini
// "?key=" scheme.
func NewQueryKeyAuth(param string, source TokenSource) AuthStrategy {
	return &queryKeyAuth{param: param, source: source}
}

func (a *queryKeyAuth) Mode() string {
	return authModeQueryKey
}

func (a *queryKeyAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.source.Token(ctx)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set(a.param, token)
	req.URL.RawQuery = q.Encode()
	return nil
}
