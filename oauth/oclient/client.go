package oclient

import "context"

// OAuthService runs the three-legged authorization code flow for one provider.
type OAuthService interface {
	// Authorize stores a fresh state record and returns the provider URL the
	// browser should be sent to.
	Authorize(ctx context.Context, userID, orgID string) (string, error)

	// Callback validates the returned state, exchanges the code and stores the
	// resulting credential for later pickup.
	Callback(ctx context.Context, params CallbackParams) (*Credential, error)

	// ConsumeCredentials returns the stored credential and removes it.
	ConsumeCredentials(ctx context.Context, userID, orgID string) (*Credential, error)

	// Refresh trades the credential's refresh token for a new credential.
	Refresh(ctx context.Context, orgID string, cred Credential) (*Credential, error)
}

// IntegrationSource resolves the OAuth app settings for an organization.
type IntegrationSource interface {
	GetIntegration(ctx context.Context, orgID, provider string) (Integration, error)
}

// IntegrationStore manages per-organization OAuth app settings.
type IntegrationStore interface {
	IntegrationSource

	// AddIntegration registers a new OAuth client configuration for an organization.
	AddIntegration(ctx context.Context, orgID string, integration Integration) error

	// UpdateIntegration updates the client credentials or settings.
	UpdateIntegration(ctx context.Context, orgID, provider string, integration Integration) error

	// DeleteIntegration removes the integration.
	DeleteIntegration(ctx context.Context, orgID, provider string) error

	// ListIntegrations returns all configured OAuth providers for an organization.
	ListIntegrations(ctx context.Context, orgID string) ([]Integration, error)
}
