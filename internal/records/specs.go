package records

import (
	"encoding/json"
	"fmt"
)

// Specs is the typed sidecar attached to a product record. Each stage owns a
// distinct subset of fields:
//
//	inventory: SKU, InventoryID
//	stocks:    Stock, GlobalStock
//	publisher: CategoryCode, CategoryType, Attributes, UploadID, ModerationStatus
//	conveyor:  Log
//
// The whole struct is serialized into a single JSON column so new fields can
// be added without schema migrations.
type Specs struct {
	CategoryCode     string         `json:"category_code,omitempty"`
	CategoryType     string         `json:"category_type,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	SKU              string         `json:"sku,omitempty"`
	InventoryID      string         `json:"inventory_id,omitempty"`
	UploadID         string         `json:"upload_id,omitempty"`
	ModerationStatus string         `json:"moderation_status,omitempty"`
	Stock            int            `json:"stock"`
	GlobalStock      int            `json:"global_stock"`
	Log              []string       `json:"log,omitempty"`
}

func (s Specs) marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal specs: %w", err)
	}
	return string(data), nil
}

func specsFromJSON(raw string) Specs {
	var specs Specs
	if raw == "" {
		return specs
	}
	// A corrupted sidecar falls back to empty specs rather than wedging the
	// record; the conveyor will repopulate stage fields on the next pass.
	_ = json.Unmarshal([]byte(raw), &specs)
	return specs
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

func stringsFromJSON(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	_ = json.Unmarshal([]byte(raw), &values)
	return values
}

func marshalStringMap(values map[string]string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal string map: %w", err)
	}
	return string(data), nil
}

func stringMapFromJSON(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var values map[string]string
	_ = json.Unmarshal([]byte(raw), &values)
	return values
}
