package items

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seann-Moser/integrations/oauth/oclient"
)

var testCollections = []Collection{
	{
		Name:          "contacts",
		Path:          "/crm/v3/objects/contacts",
		Type:          TypeContact,
		NameFields:    []string{"firstname", "lastname"},
		PropertiesKey: "properties",
		CreatedField:  "createdAt",
		UpdatedField:  "updatedAt",
	},
	{
		Name:          "companies",
		Path:          "/crm/v3/objects/companies",
		Type:          TypeCompany,
		NameFields:    []string{"name"},
		PropertiesKey: "properties",
		CreatedField:  "createdAt",
		UpdatedField:  "updatedAt",
	},
	{
		Name:          "deals",
		Path:          "/crm/v3/objects/deals",
		Type:          TypeDeal,
		NameFields:    []string{"dealname"},
		PropertiesKey: "properties",
		CreatedField:  "createdAt",
		UpdatedField:  "updatedAt",
	},
}

type fakeCRM struct {
	mu       sync.Mutex
	requests []*http.Request
	pages    map[string]string
	failures map[string]int
}

func newFakeCRM(t *testing.T) (*fakeCRM, *httptest.Server) {
	t.Helper()
	crm := &fakeCRM{pages: map[string]string{}, failures: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crm.mu.Lock()
		crm.requests = append(crm.requests, r.Clone(context.Background()))
		status, failing := crm.failures[r.URL.Path]
		page, ok := crm.pages[r.URL.Path]
		crm.mu.Unlock()

		if failing {
			http.Error(w, `{"message":"boom"}`, status)
			return
		}
		if !ok {
			page = `{"results":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return crm, srv
}

func credentialJSON(t *testing.T, token string) []byte {
	t.Helper()
	b, err := json.Marshal(oclient.Credential{AccessToken: token, TokenType: "bearer"})
	require.NoError(t, err)
	return b
}

func TestAggregator_LoadAllCollections(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/contacts"] = `{"results":[
		{"id":"1","properties":{"firstname":"Ada","lastname":"Lovelace"},"createdAt":"2024-01-02T03:04:05Z","updatedAt":"2024-02-03T04:05:06.789Z"},
		{"id":"2","properties":{"firstname":"","lastname":null}}
	]}`
	crm.pages["/crm/v3/objects/companies"] = `{"results":[{"id":"10","properties":{"name":"Acme"}}]}`
	crm.pages["/crm/v3/objects/deals"] = `{"results":[{"id":"100","properties":{"dealname":"Big deal"}}]}`

	agg := NewAggregator("hubspot", srv.URL, testCollections)
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok-123"))
	require.NoError(t, err)

	require.Len(t, res.Items, 4)
	assert.Equal(t, Item{
		ID:               "1",
		Type:             TypeContact,
		Name:             "Ada Lovelace",
		CreationTime:     ptrTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		LastModifiedTime: ptrTime(time.Date(2024, 2, 3, 4, 5, 6, 789000000, time.UTC)),
	}, res.Items[0])
	assert.Equal(t, "Contact 2", res.Items[1].Name)
	assert.Nil(t, res.Items[1].CreationTime)
	assert.Equal(t, "Acme", res.Items[2].Name)
	assert.Equal(t, TypeCompany, res.Items[2].Type)
	assert.Equal(t, "Big deal", res.Items[3].Name)
	assert.Equal(t, TypeDeal, res.Items[3].Type)

	require.Len(t, res.Collections, 3)
	for _, st := range res.Collections {
		assert.True(t, st.OK(), st.Collection)
		assert.Equal(t, http.StatusOK, st.Status)
	}
	assert.Equal(t, 2, res.Collections[0].Count)

	crm.mu.Lock()
	defer crm.mu.Unlock()
	require.Len(t, crm.requests, 3)
	for _, r := range crm.requests {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
	}
}

func TestAggregator_PropertiesParam(t *testing.T) {
	crm, srv := newFakeCRM(t)

	agg := NewAggregator("hubspot", srv.URL, testCollections[:1], WithPageSize(25))
	_, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	require.Len(t, crm.requests, 1)
	q := crm.requests[0].URL.Query()
	assert.Equal(t, "25", q.Get("limit"))
	assert.Equal(t, "firstname,lastname", q.Get("properties"))
}

func TestAggregator_FailedCollectionIsSkipped(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/contacts"] = `{"results":[{"id":"1","properties":{"firstname":"Ada"}}]}`
	crm.pages["/crm/v3/objects/deals"] = `{"results":[{"id":"100","properties":{"dealname":"Big deal"}}]}`
	crm.failures["/crm/v3/objects/companies"] = http.StatusInternalServerError

	agg := NewAggregator("hubspot", srv.URL, testCollections)
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, TypeContact, res.Items[0].Type)
	assert.Equal(t, TypeDeal, res.Items[1].Type)

	companies := res.Collections[1]
	assert.False(t, companies.OK())
	assert.Equal(t, http.StatusInternalServerError, companies.Status)
	assert.Contains(t, companies.Error, "status 500")
	assert.Zero(t, companies.Count)
}

func TestAggregator_EmptyCollectionIsNotFailure(t *testing.T) {
	_, srv := newFakeCRM(t)

	agg := NewAggregator("hubspot", srv.URL, testCollections)
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	for _, st := range res.Collections {
		assert.True(t, st.OK())
		assert.Zero(t, st.Count)
	}
}

func TestAggregator_NullRecordsAreSkipped(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/contacts"] = `{"results":[null,{"id":"1","properties":{"firstname":"Ada"}},null]}`

	agg := NewAggregator("hubspot", srv.URL, testCollections[:1])
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "1", res.Items[0].ID)
	assert.Equal(t, "Ada", res.Items[0].Name)
	assert.Equal(t, 1, res.Collections[0].Count)
}

func TestAggregator_LoadKeepsProviderFields(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/deals"] = `{"results":[{"id":"100","properties":{"dealname":"Big deal"}}]}`

	agg := NewAggregator("hubspot", srv.URL, testCollections[2:])
	raw := []byte(`{"access_token":"tok-9","refresh_token":"rt","expires_in":"1800","hub_id":42}`)
	res, err := agg.Load(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	crm.mu.Lock()
	defer crm.mu.Unlock()
	require.NotEmpty(t, crm.requests)
	assert.Equal(t, "Bearer tok-9", crm.requests[0].Header.Get("Authorization"))
}

func TestAggregator_UndecodablePage(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/contacts"] = `not json`

	agg := NewAggregator("hubspot", srv.URL, testCollections[:1])
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.False(t, res.Collections[0].OK())
	assert.Contains(t, res.Collections[0].Error, "decode contacts")
}

func TestAggregator_InvalidCredentials(t *testing.T) {
	crm, srv := newFakeCRM(t)
	agg := NewAggregator("hubspot", srv.URL, testCollections)

	for name, raw := range map[string][]byte{
		"not json":     []byte("{"),
		"empty object": []byte("{}"),
		"blank token":  []byte(`{"access_token":"  "}`),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := agg.Load(context.Background(), raw)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
	assert.Empty(t, crm.requests)
}

func TestAggregator_ConcurrencyOne(t *testing.T) {
	crm, srv := newFakeCRM(t)
	crm.pages["/crm/v3/objects/deals"] = `{"results":[{"id":"100","properties":{"dealname":"Big deal"}}]}`

	agg := NewAggregator("hubspot", srv.URL, testCollections, WithConcurrency(1), WithRateLimit(1000, 3))
	res, err := agg.Load(context.Background(), credentialJSON(t, "tok"))
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Len(t, crm.requests, 3)
}

func ptrTime(t time.Time) *time.Time { return &t }
