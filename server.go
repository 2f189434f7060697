// Package integrations serves the OAuth connect flow and item loading for
// third-party CRM providers over HTTP.
package integrations

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/Seann-Moser/integrations/items"
	"github.com/Seann-Moser/integrations/oauth/oclient"
	"github.com/Seann-Moser/integrations/session"
)

// ItemLoader loads normalized items with a serialized credential.
type ItemLoader interface {
	Load(ctx context.Context, raw []byte) (*items.Result, error)
}

var _ ItemLoader = (*items.Aggregator)(nil)

// Provider binds a provider name to its OAuth flow and item loader.
type Provider struct {
	Name  string
	OAuth oclient.OAuthService
	Items ItemLoader
}

// Server routes /integrations/{provider}/... requests to the matching Provider.
type Server struct {
	providers map[string]Provider
	sessions  *session.Client
	health    func(ctx context.Context) error
	logger    *slog.Logger
}

type Option func(*Server)

// WithSessions resolves caller identity from signed session cookies.
func WithSessions(c *session.Client) Option {
	return func(s *Server) { s.sessions = c }
}

// WithHealthCheck adds a dependency check to /healthz.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(providers []Provider, opts ...Option) *Server {
	s := &Server{
		providers: make(map[string]Provider, len(providers)),
		logger:    slog.Default(),
	}
	for _, p := range providers {
		s.providers[p.Name] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers lists the configured provider names in sorted order.
func (s *Server) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the HTTP handler with all routes and middleware attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /integrations/{provider}/authorize", s.authorize)
	mux.HandleFunc("GET /integrations/{provider}/oauth2callback", s.callback)
	mux.HandleFunc("POST /integrations/{provider}/credentials", s.credentials)
	mux.HandleFunc("POST /integrations/{provider}/load", s.load)
	mux.HandleFunc("POST /integrations/{provider}/refresh", s.refresh)
	mux.HandleFunc("GET /healthz", s.healthz)
	if s.sessions != nil {
		mux.HandleFunc("POST /session/logout", s.logout)
	}

	var h http.Handler = mux
	if s.sessions != nil {
		h = s.sessions.Middleware(h)
	}
	h = loggingMiddleware(s.logger, h)
	return requestIDMiddleware(h)
}

func (s *Server) provider(r *http.Request) (Provider, error) {
	name := r.PathValue("provider")
	p, ok := s.providers[name]
	if !ok {
		return Provider{}, ErrUnknownProvider
	}
	return p, nil
}
