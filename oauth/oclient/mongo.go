package oclient

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ IntegrationStore = &MongoIntegrationStore{}

// MongoIntegrationStore keeps per-organization OAuth app settings in MongoDB.
type MongoIntegrationStore struct {
	integrations *mongo.Collection
	now          func() time.Time
}

type integrationDoc struct {
	OrgID        string    `bson:"org_id"`
	Provider     string    `bson:"provider"`
	ClientID     string    `bson:"client_id"`
	ClientSecret string    `bson:"client_secret"`
	RedirectURL  string    `bson:"redirect_url"`
	Scopes       []string  `bson:"scopes"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d integrationDoc) integration() Integration {
	return Integration{
		Provider:     d.Provider,
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		RedirectURL:  d.RedirectURL,
		Scopes:       d.Scopes,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// NewMongoIntegrationStore creates a store backed by the given DB.
func NewMongoIntegrationStore(db *mongo.Database) *MongoIntegrationStore {
	return &MongoIntegrationStore{
		integrations: db.Collection("oauth_integrations"),
		now:          time.Now,
	}
}

// AddIntegration registers a new OAuth client configuration.
func (s *MongoIntegrationStore) AddIntegration(ctx context.Context, orgID string, in Integration) error {
	now := s.now().UTC()
	_, err := s.integrations.InsertOne(ctx, integrationDoc{
		OrgID:        orgID,
		Provider:     in.Provider,
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		RedirectURL:  in.RedirectURL,
		Scopes:       in.Scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return err
}

// UpdateIntegration updates client credentials or settings.
func (s *MongoIntegrationStore) UpdateIntegration(ctx context.Context, orgID, provider string, in Integration) error {
	filter := bson.M{"org_id": orgID, "provider": provider}
	update := bson.M{"$set": bson.M{
		"client_id":     in.ClientID,
		"client_secret": in.ClientSecret,
		"redirect_url":  in.RedirectURL,
		"scopes":        in.Scopes,
		"updated_at":    s.now().UTC(),
	}}
	res, err := s.integrations.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}

// DeleteIntegration removes the integration.
func (s *MongoIntegrationStore) DeleteIntegration(ctx context.Context, orgID, provider string) error {
	_, err := s.integrations.DeleteOne(ctx, bson.M{"org_id": orgID, "provider": provider})
	return err
}

// ListIntegrations returns all OAuth configs for an organization.
func (s *MongoIntegrationStore) ListIntegrations(ctx context.Context, orgID string) ([]Integration, error) {
	cursor, err := s.integrations.Find(ctx, bson.M{"org_id": orgID})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var out []Integration
	for cursor.Next(ctx) {
		var doc integrationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.integration())
	}
	return out, cursor.Err()
}

// GetIntegration fetches one provider's config.
func (s *MongoIntegrationStore) GetIntegration(ctx context.Context, orgID, provider string) (Integration, error) {
	var doc integrationDoc
	err := s.integrations.FindOne(ctx, bson.M{"org_id": orgID, "provider": provider}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Integration{}, ErrIntegrationNotFound
	}
	if err != nil {
		return Integration{}, err
	}
	return doc.integration(), nil
}
