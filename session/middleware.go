package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Seann-Moser/integrations/utils"
)

// Client verifies session cookies and keeps active ones from expiring.
type Client struct {
	ttl    time.Duration
	secret []byte
	logger *slog.Logger
}

// NewClient constructs a Client. A nil logger uses slog.Default.
func NewClient(secret []byte, sessionTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		ttl:    sessionTTL,
		secret: secret,
		logger: logger,
	}
}

// Middleware attaches a valid session cookie to the request context. Requests
// without one pass through unchanged. Sessions past half their lifetime are
// re-signed with a fresh expiry.
func (c *Client) Middleware(next http.Handler) http.Handler {
	if len(c.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := GetSessionFromCookie(r, c.secret)
		switch {
		case err == nil:
			c.renew(w, r, u)
			r = r.WithContext(u.WithContext(r.Context()))
		case !errors.Is(err, http.ErrNoCookie):
			c.logger.DebugContext(r.Context(), "ignoring session cookie", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Client) renew(w http.ResponseWriter, r *http.Request, u *UserSessionData) {
	if c.ttl <= 0 {
		return
	}
	now := time.Now()
	if time.Unix(u.ExpiresAt, 0).Sub(now) > c.ttl/2 {
		return
	}
	u.ExpiresAt = now.Add(c.ttl).Unix()
	if u.Domain == "" {
		u.Domain = utils.GetDomain(r)
	}
	if err := SetSessionCookie(w, u, c.secret); err != nil {
		c.logger.WarnContext(r.Context(), "renewing session cookie", "error", err)
	}
}

// Identity resolves the user and org for a request. A signed-in session wins
// over the values supplied in the form.
func Identity(r *http.Request, userID, orgID string) (string, string) {
	u, err := GetSession(r.Context())
	if err != nil || !u.SignedIn {
		return userID, orgID
	}
	if u.UserID != "" {
		userID = u.UserID
	}
	if u.AccountID != "" {
		orgID = u.AccountID
	}
	return userID, orgID
}
