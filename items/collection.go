package items

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Collection describes one provider endpoint and how its records map onto Items.
type Collection struct {
	Name  string   // e.g. "contacts"
	Path  string   // appended to the provider's API base URL
	Type  ItemType // item type of every record
	Label string   // used in fallback names; defaults to Type

	// NameFields are joined with a space to build the display name.
	NameFields []string
	// PropertiesKey is the object holding NameFields. Empty means the record itself.
	PropertiesKey string

	IDField         string // defaults to "id"
	CreatedField    string
	UpdatedField    string
	ParentIDField   string
	ParentNameField string
	ResultsField    string // defaults to "results"
}

func (c Collection) label() string {
	if c.Label != "" {
		return c.Label
	}
	return string(c.Type)
}

func (c Collection) idField() string {
	if c.IDField != "" {
		return c.IDField
	}
	return "id"
}

func (c Collection) resultsField() string {
	if c.ResultsField != "" {
		return c.ResultsField
	}
	return "results"
}

// Normalize maps a decoded record onto an Item. Records decoded with
// json.Decoder.UseNumber keep large numeric ids intact.
func (c Collection) Normalize(record map[string]any) Item {
	id := stringValue(record[c.idField()])
	props := record
	if c.PropertiesKey != "" {
		props, _ = record[c.PropertiesKey].(map[string]any)
	}

	item := Item{
		ID:   id,
		Type: c.Type,
		Name: c.displayName(props),
	}
	if item.Name == "" {
		item.Name = fmt.Sprintf("%s %s", c.label(), id)
	}
	if c.ParentIDField != "" {
		item.ParentID = stringValue(lookup(record, props, c.ParentIDField))
	}
	if c.ParentNameField != "" {
		item.ParentPathOrName = stringValue(lookup(record, props, c.ParentNameField))
	}
	if c.CreatedField != "" {
		item.CreationTime = timeValue(record[c.CreatedField])
	}
	if c.UpdatedField != "" {
		item.LastModifiedTime = timeValue(record[c.UpdatedField])
	}
	return item
}

func (c Collection) displayName(props map[string]any) string {
	parts := make([]string, 0, len(c.NameFields))
	for _, f := range c.NameFields {
		if v := strings.TrimSpace(stringValue(props[f])); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// lookup prefers the top-level record and falls back to the properties object.
func lookup(record, props map[string]any, key string) any {
	if v, ok := record[key]; ok && v != nil {
		return v
	}
	return props[key]
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timeValue parses RFC 3339 style strings or unix milliseconds. Anything else
// is treated as absent.
func timeValue(v any) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ts := time.UnixMilli(ms).UTC()
			return &ts
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			ts := time.UnixMilli(ms).UTC()
			return &ts
		}
	case float64:
		ts := time.UnixMilli(int64(t)).UTC()
		return &ts
	}
	return nil
}
