package items

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var rec map[string]any
	require.NoError(t, dec.Decode(&rec))
	return rec
}

func TestCollection_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		col    Collection
		record string
		want   Item
	}{
		{
			name:   "top level fields with numeric id",
			col:    Collection{Type: TypeDeal, NameFields: []string{"title"}, IDField: "deal_id"},
			record: `{"deal_id":12345678901234,"title":"  Renewal "}`,
			want:   Item{ID: "12345678901234", Type: TypeDeal, Name: "Renewal"},
		},
		{
			name:   "missing properties object falls back",
			col:    Collection{Type: TypeCompany, NameFields: []string{"name"}, PropertiesKey: "properties"},
			record: `{"id":"7"}`,
			want:   Item{ID: "7", Type: TypeCompany, Name: "Company 7"},
		},
		{
			name:   "label overrides fallback prefix",
			col:    Collection{Type: TypeOther, Label: "Ticket", NameFields: []string{"subject"}},
			record: `{"id":"9","subject":""}`,
			want:   Item{ID: "9", Type: TypeOther, Name: "Ticket 9"},
		},
		{
			name: "parent fields",
			col: Collection{
				Type:            TypeContact,
				NameFields:      []string{"email"},
				PropertiesKey:   "properties",
				ParentIDField:   "associatedcompanyid",
				ParentNameField: "company",
			},
			record: `{"id":"3","properties":{"email":"a@b.c","associatedcompanyid":"10","company":"Acme"}}`,
			want:   Item{ID: "3", Type: TypeContact, Name: "a@b.c", ParentID: "10", ParentPathOrName: "Acme"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.col.Normalize(decodeRecord(t, tt.record))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollection_NormalizeTimestamps(t *testing.T) {
	col := Collection{Type: TypeDeal, CreatedField: "created", UpdatedField: "updated"}

	got := col.Normalize(decodeRecord(t, `{"id":"1","created":1704164645000,"updated":"2024-01-02 03:04:05"}`))
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NotNil(t, got.CreationTime)
	require.NotNil(t, got.LastModifiedTime)
	assert.True(t, got.CreationTime.Equal(want))
	assert.True(t, got.LastModifiedTime.Equal(want))

	got = col.Normalize(decodeRecord(t, `{"id":"1","created":"yesterday","updated":null}`))
	assert.Nil(t, got.CreationTime)
	assert.Nil(t, got.LastModifiedTime)
}

func TestParseItemType(t *testing.T) {
	assert.Equal(t, TypeContact, ParseItemType("contact"))
	assert.Equal(t, TypeCompany, ParseItemType(" Company "))
	assert.Equal(t, TypeDeal, ParseItemType("DEAL"))
	assert.Equal(t, TypeOther, ParseItemType("ticket"))
}
