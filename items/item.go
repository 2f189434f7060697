// Package items fetches provider records and normalizes them into a single
// flat Item shape shared by every integration.
package items

import (
	"strings"
	"time"
)

// ItemType is the kind of record an Item was built from.
type ItemType string

const (
	TypeContact ItemType = "Contact"
	TypeCompany ItemType = "Company"
	TypeDeal    ItemType = "Deal"
	TypeOther   ItemType = "Other"
)

// ParseItemType maps a case-insensitive name onto an ItemType. Unknown names
// become TypeOther.
func ParseItemType(s string) ItemType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contact":
		return TypeContact
	case "company":
		return TypeCompany
	case "deal":
		return TypeDeal
	default:
		return TypeOther
	}
}

// Item is the normalized form of a provider record.
type Item struct {
	ID               string     `json:"id"`
	Type             ItemType   `json:"type"`
	Name             string     `json:"name"`
	ParentID         string     `json:"parent_id,omitempty"`
	ParentPathOrName string     `json:"parent_path_or_name,omitempty"`
	CreationTime     *time.Time `json:"creation_time,omitempty"`
	LastModifiedTime *time.Time `json:"last_modified_time,omitempty"`
}
