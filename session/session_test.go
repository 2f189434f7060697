package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestHMAC(t *testing.T) {
	secret := []byte("mysecret")
	msg := "hello"
	sig := computeHMAC(msg, secret)
	if !validateHMAC(msg, sig, secret) {
		t.Errorf("validateHMAC failed for valid signature")
	}
	if validateHMAC(msg, sig+"bad", secret) {
		t.Errorf("validateHMAC passed for invalid signature")
	}
}

func TestCookieRoundTrip(t *testing.T) {
	secret := []byte("mysessionsecret")
	u := &UserSessionData{
		UserID:    "user123",
		AccountID: "org9",
		SignedIn:  true,
		ExpiresAt: time.Now().Add(1 * time.Hour).Unix(),
	}
	rr := httptest.NewRecorder()
	if err := SetSessionCookie(rr, u, secret); err != nil {
		t.Fatalf("SetSessionCookie error: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no cookie set")
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	got, err := GetSessionFromCookie(req, secret)
	if err != nil {
		t.Fatalf("GetSessionFromCookie error: %v", err)
	}
	if got.UserID != u.UserID || got.AccountID != u.AccountID {
		t.Errorf("expected %s/%s, got %s/%s", u.UserID, u.AccountID, got.UserID, got.AccountID)
	}

	// a different secret must not validate
	if _, err := GetSessionFromCookie(req, []byte("other")); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestCookieRejects(t *testing.T) {
	secret := []byte("secret")

	if _, err := decode(&http.Cookie{Value: "no-separator"}, secret); !errors.Is(err, ErrInvalidCookie) {
		t.Errorf("expected ErrInvalidCookie, got %v", err)
	}

	rr := httptest.NewRecorder()
	expired := &UserSessionData{UserID: "u1", SignedIn: true, ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	if err := SetSessionCookie(rr, expired, secret); err != nil {
		t.Fatalf("SetSessionCookie error: %v", err)
	}
	c := rr.Result().Cookies()[0]
	if _, err := decode(c, secret); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}

	if err := SetSessionCookie(httptest.NewRecorder(), expired, nil); err == nil {
		t.Errorf("expected error for empty secret")
	}
}

func TestContextSession(t *testing.T) {
	u := &UserSessionData{UserID: "ctxuser"}
	ctx := u.WithContext(context.Background())
	got, err := GetSession(ctx)
	if err != nil {
		t.Errorf("GetSession error: %v", err)
	}
	if got.UserID != u.UserID {
		t.Errorf("expected %s, got %s", u.UserID, got.UserID)
	}
	if _, err = GetSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func signedCookie(t *testing.T, secret []byte, u *UserSessionData) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := SetSessionCookie(rr, u, secret); err != nil {
		t.Fatalf("SetSessionCookie error: %v", err)
	}
	return rr.Result().Cookies()[0]
}

func identityHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		user, org := Identity(r, r.PostForm.Get("user_id"), r.PostForm.Get("org_id"))
		_, _ = w.Write([]byte(user + "/" + org))
	})
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/integrations/hubspot/authorize", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMiddleware_Identity(t *testing.T) {
	client := NewClient([]byte("secret"), time.Hour, nil)
	h := client.Middleware(identityHandler())
	form := url.Values{"user_id": {"form-user"}, "org_id": {"form-org"}}

	t.Run("no cookie uses form", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, formRequest(form))
		if got := rr.Body.String(); got != "form-user/form-org" {
			t.Errorf("unexpected identity %q", got)
		}
	})

	t.Run("signed in session wins", func(t *testing.T) {
		req := formRequest(form)
		req.AddCookie(signedCookie(t, []byte("secret"), &UserSessionData{
			UserID:    "session-user",
			AccountID: "session-org",
			SignedIn:  true,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Body.String(); got != "session-user/session-org" {
			t.Errorf("unexpected identity %q", got)
		}
		if c := rr.Result().Cookies(); len(c) != 0 {
			t.Errorf("fresh session must not be re-signed, got %+v", c)
		}
	})

	t.Run("tampered cookie is ignored", func(t *testing.T) {
		req := formRequest(form)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "e30=|bogus"})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Body.String(); got != "form-user/form-org" {
			t.Errorf("unexpected identity %q", got)
		}
	})
}

func TestIdentity_AnonymousSession(t *testing.T) {
	u := &UserSessionData{UserID: "anon-1", SignedIn: false}
	req := formRequest(url.Values{}).WithContext(u.WithContext(context.Background()))
	user, org := Identity(req, "u1", "o1")
	if user != "u1" || org != "o1" {
		t.Errorf("anonymous session must not override form values, got %s/%s", user, org)
	}
}

func TestClearSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	ClearSessionCookie(rr)
	c := rr.Result().Cookies()
	if len(c) != 1 || c[0].Name != sessionCookieName || c[0].MaxAge >= 0 {
		t.Errorf("unexpected cookies %+v", c)
	}
}

func TestMiddleware_RenewsAgingSession(t *testing.T) {
	secret := []byte("secret")
	client := NewClient(secret, time.Hour, nil)
	h := client.Middleware(identityHandler())

	req := formRequest(url.Values{})
	req.Header.Set("Origin", "https://app.example.com")
	req.AddCookie(signedCookie(t, secret, &UserSessionData{
		UserID:    "session-user",
		AccountID: "session-org",
		SignedIn:  true,
		ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Body.String(); got != "session-user/session-org" {
		t.Errorf("unexpected identity %q", got)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected a renewed cookie, got %d", len(cookies))
	}
	renewed, err := decode(cookies[0], secret)
	if err != nil {
		t.Fatalf("renewed cookie does not verify: %v", err)
	}
	if left := time.Until(time.Unix(renewed.ExpiresAt, 0)); left < 50*time.Minute {
		t.Errorf("expected a full lifetime after renewal, got %v", left)
	}
	if renewed.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %q", renewed.Domain)
	}
	if renewed.UserID != "session-user" || renewed.AccountID != "session-org" {
		t.Errorf("renewal changed identity: %+v", renewed)
	}
}
