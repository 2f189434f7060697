package oclient

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Seann-Moser/integrations/cache"
)

// DefaultTTL bounds how long a user has to finish the flow and how long the
// resulting credential waits for pickup.
const DefaultTTL = 600 * time.Second

var _ OAuthService = &Flow{}

// Flow implements OAuthService for a single provider on top of a Cache.
type Flow struct {
	provider     string
	endpoint     oauth2.Endpoint
	integrations IntegrationSource
	cache        cache.Cache
	stateTTL     time.Duration
	credTTL      time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithTTL overrides the state and credential lifetimes.
func WithTTL(state, credentials time.Duration) FlowOption {
	return func(f *Flow) {
		if state > 0 {
			f.stateTTL = state
		}
		if credentials > 0 {
			f.credTTL = credentials
		}
	}
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = c }
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) FlowOption {
	return func(f *Flow) { f.logger = l }
}

// NewFlow creates a Flow. Client credentials are looked up per organization
// from integrations; endpoint supplies the provider's auth and token URLs.
func NewFlow(provider string, endpoint oauth2.Endpoint, integrations IntegrationSource, c cache.Cache, opts ...FlowOption) *Flow {
	// client_id and client_secret go in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	f := &Flow{
		provider:     provider,
		endpoint:     endpoint,
		integrations: integrations,
		cache:        c,
		stateTTL:     DefaultTTL,
		credTTL:      DefaultTTL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("provider", provider)
	return f
}

// Provider returns the provider name used to namespace cache keys.
func (f *Flow) Provider() string {
	return f.provider
}

// StateKey is the cache key of the pending state record.
func (f *Flow) StateKey(orgID, userID string) string {
	return fmt.Sprintf("%s_state:%s:%s", f.provider, orgID, userID)
}

// CredentialsKey is the cache key of the credential waiting for pickup.
func (f *Flow) CredentialsKey(orgID, userID string) string {
	return fmt.Sprintf("%s_credentials:%s:%s", f.provider, orgID, userID)
}

func (f *Flow) Authorize(ctx context.Context, userID, orgID string) (string, error) {
	if userID == "" || orgID == "" {
		return "", fmt.Errorf("%w: user_id and org_id are required", ErrMissingParameter)
	}
	cfg, err := f.oauthConfig(ctx, orgID)
	if err != nil {
		return "", err
	}

	token, err := generateStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	raw, err := json.Marshal(StateData{State: token, UserID: userID, OrgID: orgID})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	if err := f.cache.Set(ctx, f.StateKey(orgID, userID), string(raw), f.stateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	f.logger.DebugContext(ctx, "authorization started", "org_id", orgID, "user_id", userID)
	return cfg.AuthCodeURL(encodeState(raw)), nil
}

func (f *Flow) Callback(ctx context.Context, params CallbackParams) (*Credential, error) {
	if params.Error != "" {
		return nil, &AuthorizationError{Code: params.Error, Description: params.ErrorDescription}
	}

	state, err := decodeState(params.State)
	if err != nil {
		return nil, err
	}
	if params.Code == "" {
		return nil, fmt.Errorf("%w: code", ErrMissingParameter)
	}

	stateKey := f.StateKey(state.OrgID, state.UserID)
	if err := f.verifyState(ctx, stateKey, state.State); err != nil {
		return nil, err
	}

	cfg, err := f.oauthConfig(ctx, state.OrgID)
	if err != nil {
		return nil, err
	}

	// The state record is single use whatever the exchange outcome.
	var (
		wg     sync.WaitGroup
		delErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		delErr = f.cache.Delete(ctx, stateKey)
	}()
	exCtx, rec := f.clientContext(ctx)
	tok, exErr := cfg.Exchange(exCtx, params.Code)
	wg.Wait()

	if exErr != nil {
		return nil, f.providerError(exErr)
	}
	if delErr != nil {
		return nil, fmt.Errorf("delete oauth state: %w", delErr)
	}

	cred := credentialFromResponse(tok, rec.body)
	raw, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	if err := f.cache.Set(ctx, f.CredentialsKey(state.OrgID, state.UserID), string(raw), f.credTTL); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	f.logger.InfoContext(ctx, "authorization completed", "org_id", state.OrgID, "user_id", state.UserID)
	return cred, nil
}

func (f *Flow) ConsumeCredentials(ctx context.Context, userID, orgID string) (*Credential, error) {
	if userID == "" || orgID == "" {
		return nil, fmt.Errorf("%w: user_id and org_id are required", ErrMissingParameter)
	}
	raw, err := f.cache.Take(ctx, f.CredentialsKey(orgID, userID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &cred, nil
}

func (f *Flow) Refresh(ctx context.Context, orgID string, cred Credential) (*Credential, error) {
	if cred.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	cfg, err := f.oauthConfig(ctx, orgID)
	if err != nil {
		return nil, err
	}
	// an empty access token forces the source to hit the token endpoint
	rCtx, rec := f.clientContext(ctx)
	ts := cfg.TokenSource(rCtx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, f.providerError(err)
	}
	next := credentialFromResponse(tok, rec.body)
	if next.RefreshToken == "" {
		// the provider did not rotate the refresh token
		return next.withRefreshToken(cred.RefreshToken)
	}
	return next, nil
}

func (f *Flow) verifyState(ctx context.Context, key, token string) error {
	saved, err := f.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return ErrStateMismatch
	}
	if err != nil {
		return fmt.Errorf("load oauth state: %w", err)
	}
	var stored StateData
	if err := json.Unmarshal([]byte(saved), &stored); err != nil {
		f.logger.WarnContext(ctx, "unreadable oauth state record", "key", key, "error", err)
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored.State), []byte(token)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

func (f *Flow) oauthConfig(ctx context.Context, orgID string) (*oauth2.Config, error) {
	in, err := f.integrations.GetIntegration(ctx, orgID, f.provider)
	if err != nil {
		return nil, fmt.Errorf("load %s integration: %w", f.provider, err)
	}
	return &oauth2.Config{
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		Endpoint:     f.endpoint,
		RedirectURL:  in.RedirectURL,
		Scopes:       in.Scopes,
	}, nil
}

// clientContext carries a client whose transport records the token
// endpoint's response body for this call only.
func (f *Flow) clientContext(ctx context.Context) (context.Context, *recordingTransport) {
	base := f.httpClient
	if base == nil {
		base = http.DefaultClient
	}
	rec := &recordingTransport{base: base.Transport}
	if rec.base == nil {
		rec.base = http.DefaultTransport
	}
	client := &http.Client{Transport: rec, Timeout: base.Timeout}
	return context.WithValue(ctx, oauth2.HTTPClient, client), rec
}

const maxTokenResponse = 1 << 20

type recordingTransport struct {
	base http.RoundTripper
	body []byte
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (f *Flow) providerError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &ProviderError{
			Provider: f.provider,
			Status:   re.Response.StatusCode,
			Body:     string(re.Body),
		}
	}
	return fmt.Errorf("%s token request: %w", f.provider, err)
}

// credentialFromResponse keeps the JSON token response verbatim. Providers
// answering with a form encoded body fall back to the parsed token.
func credentialFromResponse(tok *oauth2.Token, body []byte) *Credential {
	if json.Valid(body) {
		if cred, err := ParseCredential(body); err == nil && cred.AccessToken != "" {
			return cred
		}
	}
	return credentialFromToken(tok)
}

func credentialFromToken(tok *oauth2.Token) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if v, ok := tok.Extra("expires_in").(float64); ok {
		cred.ExpiresIn = int64(v)
	}
	if v, ok := tok.Extra("scope").(string); ok {
		cred.Scope = v
	}
	return cred
}
