package oclient

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Integration holds the OAuth app settings an organization uses for a provider.
type Integration struct {
	Provider     string    `json:"provider"` // e.g. "hubspot"
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	RedirectURL  string    `json:"redirect_url"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// StateData is the anti-forgery record round-tripped through the provider.
type StateData struct {
	State  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// Credential is the token payload returned by the provider's token endpoint.
// The typed fields are read from it; the payload itself is kept verbatim and
// is what MarshalJSON emits, so provider specific fields (hub_id, id_token,
// ...) survive storage and pickup.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string

	raw json.RawMessage
}

type credentialFields struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// credentialPayload decodes the typed fields leniently; expires_in may be a
// number or a numeric string depending on the provider.
type credentialPayload struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
	Scope        string          `json:"scope"`
}

// ParseCredential reads a token endpoint response.
func ParseCredential(data []byte) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var f credentialPayload
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Credential{
		AccessToken:  f.AccessToken,
		RefreshToken: f.RefreshToken,
		TokenType:    f.TokenType,
		Scope:        f.Scope,
		raw:          append(json.RawMessage(nil), data...),
	}
	if n, err := strconv.ParseFloat(strings.Trim(string(f.ExpiresIn), `"`), 64); err == nil {
		c.ExpiresIn = int64(n)
	}
	return nil
}

func (c Credential) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	return json.Marshal(credentialFields{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		ExpiresIn:    c.ExpiresIn,
		Scope:        c.Scope,
	})
}

// Extra returns a field of the provider payload that has no typed
// counterpart, or nil.
func (c Credential) Extra(key string) any {
	if len(c.raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.raw, &m); err != nil {
		return nil
	}
	return m[key]
}

// withRefreshToken returns c with refresh_token set in the payload as well.
func (c *Credential) withRefreshToken(token string) (*Credential, error) {
	out := *c
	out.RefreshToken = token
	if len(c.raw) == 0 {
		return &out, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(c.raw, &m); err != nil {
		return nil, err
	}
	v, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}
	m["refresh_token"] = v
	if out.raw, err = json.Marshal(m); err != nil {
		return nil, err
	}
	return &out, nil
}

// CallbackParams are the query parameters the provider redirects back with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback extracts CallbackParams from a redirect query string.
func ParseCallback(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}
