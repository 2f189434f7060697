package oclient

import (
	"context"
	"errors"
)

// StaticIntegrations serves the same app settings to every organization,
// keyed by provider name.
type StaticIntegrations map[string]Integration

func (s StaticIntegrations) GetIntegration(_ context.Context, _ string, provider string) (Integration, error) {
	in, ok := s[provider]
	if !ok {
		return Integration{}, ErrIntegrationNotFound
	}
	return in, nil
}

// ChainIntegrations asks each source in order and returns the first match.
type ChainIntegrations []IntegrationSource

func (c ChainIntegrations) GetIntegration(ctx context.Context, orgID, provider string) (Integration, error) {
	for _, src := range c {
		in, err := src.GetIntegration(ctx, orgID, provider)
		if err == nil {
			return in, nil
		}
		if !errors.Is(err, ErrIntegrationNotFound) {
			return Integration{}, err
		}
	}
	return Integration{}, ErrIntegrationNotFound
}
