package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/oauth2"

	"github.com/Seann-Moser/integrations/items"
	"github.com/Seann-Moser/integrations/oauth/oclient"
)

//go:embed hubspot.toml
var defaultProviders []byte

// ProviderConfig is one provider template. Secrets are never read from the
// template file; they come from the environment.
type ProviderConfig struct {
	Name        string             `toml:"name"`
	AuthURL     string             `toml:"auth_url"`
	TokenURL    string             `toml:"token_url"`
	APIBaseURL  string             `toml:"api_base_url"`
	Scopes      []string           `toml:"scopes"`
	PageSize    int                `toml:"page_size"`
	RateLimit   float64            `toml:"rate_limit"`
	RateBurst   int                `toml:"rate_burst"`
	Collections []CollectionConfig `toml:"collections"`

	ClientID     string `toml:"-"`
	ClientSecret string `toml:"-"`
	RedirectURL  string `toml:"-"`
}

// CollectionConfig mirrors items.Collection in TOML form.
type CollectionConfig struct {
	Name            string   `toml:"name"`
	Path            string   `toml:"path"`
	Type            string   `toml:"type"`
	Label           string   `toml:"label"`
	NameFields      []string `toml:"name_fields"`
	PropertiesKey   string   `toml:"properties_key"`
	IDField         string   `toml:"id_field"`
	CreatedField    string   `toml:"created_field"`
	UpdatedField    string   `toml:"updated_field"`
	ParentIDField   string   `toml:"parent_id_field"`
	ParentNameField string   `toml:"parent_name_field"`
	ResultsField    string   `toml:"results_field"`
}

type providersFile struct {
	Providers []ProviderConfig `toml:"providers"`
}

// Collection converts the template into an items.Collection.
func (c CollectionConfig) Collection() items.Collection {
	label := c.Label
	t := items.ParseItemType(c.Type)
	if label == "" && t == items.TypeOther {
		label = c.Type
	}
	return items.Collection{
		Name:            c.Name,
		Path:            c.Path,
		Type:            t,
		Label:           label,
		NameFields:      c.NameFields,
		PropertiesKey:   c.PropertiesKey,
		IDField:         c.IDField,
		CreatedField:    c.CreatedField,
		UpdatedField:    c.UpdatedField,
		ParentIDField:   c.ParentIDField,
		ParentNameField: c.ParentNameField,
		ResultsField:    c.ResultsField,
	}
}

// ItemCollections returns the provider's collections in template order.
func (p ProviderConfig) ItemCollections() []items.Collection {
	out := make([]items.Collection, 0, len(p.Collections))
	for _, c := range p.Collections {
		out = append(out, c.Collection())
	}
	return out
}

// Endpoint returns the provider's OAuth endpoints.
func (p ProviderConfig) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: p.AuthURL, TokenURL: p.TokenURL}
}

// Integration returns the OAuth app settings taken from the environment.
func (p ProviderConfig) Integration() oclient.Integration {
	return oclient.Integration{
		Provider:     p.Name,
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes,
	}
}

// EnvPrefix is the prefix of the provider's secret variables, e.g. HUBSPOT_.
func (p ProviderConfig) EnvPrefix() string {
	return strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")) + "_"
}

func (p *ProviderConfig) applySecrets(lookup func(string) (string, bool)) {
	prefix := p.EnvPrefix()
	if v, ok := lookup(prefix + "CLIENT_ID"); ok {
		p.ClientID = strings.TrimSpace(v)
	}
	if v, ok := lookup(prefix + "CLIENT_SECRET"); ok {
		p.ClientSecret = strings.TrimSpace(v)
	}
	if v, ok := lookup(prefix + "REDIRECT_URI"); ok {
		p.RedirectURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(prefix + "SCOPES"); ok && strings.TrimSpace(v) != "" {
		p.Scopes = splitList(v)
	}
}

// Validate checks that the provider can run the OAuth flow and load items.
func (p ProviderConfig) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("provider name is required"))
	}
	if p.AuthURL == "" || p.TokenURL == "" {
		errs = append(errs, fmt.Errorf("provider %q: auth_url and token_url are required", p.Name))
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("provider %q: %sCLIENT_ID and %sCLIENT_SECRET must be set", p.Name, p.EnvPrefix(), p.EnvPrefix()))
	}
	if p.RedirectURL == "" {
		errs = append(errs, fmt.Errorf("provider %q: %sREDIRECT_URI must be set", p.Name, p.EnvPrefix()))
	}
	if len(p.Collections) > 0 && p.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("provider %q: api_base_url is required with collections", p.Name))
	}
	for _, c := range p.Collections {
		if c.Name == "" || c.Path == "" {
			errs = append(errs, fmt.Errorf("provider %q: collection needs name and path", p.Name))
		}
	}
	return errors.Join(errs...)
}

// ParseProviders decodes provider templates from TOML.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	var f providersFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers: %w", err)
	}
	seen := make(map[string]bool, len(f.Providers))
	for _, p := range f.Providers {
		if seen[p.Name] {
			return nil, fmt.Errorf("parse providers: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Providers, nil
}

// LoadProviders reads templates from path, or the built-in HubSpot template
// when path is empty.
func LoadProviders(path string) ([]ProviderConfig, error) {
	if path == "" {
		return ParseProviders(defaultProviders)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviders(data)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
