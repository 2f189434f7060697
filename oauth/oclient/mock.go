package oclient

import "context"

// MockOAuthService provides customizable hooks for testing OAuthService callers.
type MockOAuthService struct {
	AuthorizeFunc          func(ctx context.Context, userID, orgID string) (string, error)
	CallbackFunc           func(ctx context.Context, params CallbackParams) (*Credential, error)
	ConsumeCredentialsFunc func(ctx context.Context, userID, orgID string) (*Credential, error)
	RefreshFunc            func(ctx context.Context, orgID string, cred Credential) (*Credential, error)
}

// Ensure MockOAuthService implements OAuthService
var _ OAuthService = (*MockOAuthService)(nil)

// Authorize calls AuthorizeFunc if set, otherwise returns "", nil
func (m *MockOAuthService) Authorize(ctx context.Context, userID, orgID string) (string, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, userID, orgID)
	}
	return "", nil
}

// Callback calls CallbackFunc if set, otherwise returns an empty credential
func (m *MockOAuthService) Callback(ctx context.Context, params CallbackParams) (*Credential, error) {
	if m.CallbackFunc != nil {
		return m.CallbackFunc(ctx, params)
	}
	return &Credential{}, nil
}

// ConsumeCredentials calls ConsumeCredentialsFunc if set, otherwise returns ErrNoCredentials
func (m *MockOAuthService) ConsumeCredentials(ctx context.Context, userID, orgID string) (*Credential, error) {
	if m.ConsumeCredentialsFunc != nil {
		return m.ConsumeCredentialsFunc(ctx, userID, orgID)
	}
	return nil, ErrNoCredentials
}

// Refresh calls RefreshFunc if set, otherwise returns cred unchanged
func (m *MockOAuthService) Refresh(ctx context.Context, orgID string, cred Credential) (*Credential, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, orgID, cred)
	}
	return &cred, nil
}
