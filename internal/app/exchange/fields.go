// internal/app/exchange/fields.go
package exchange

import (
	"fmt"
	"strings"

	"github.com/dalemusser/giftexchange/internal/app/system/htmlsanitize"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/google/uuid"
)

// MaxCustomFields caps the questions a group may ask.
const MaxCustomFields = 20

// FieldInput is a custom field as authored by the organizer.
type FieldInput struct {
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
}

// BuildFields turns authored fields into the stored schema, assigning each a
// fresh id.
func BuildFields(in []FieldInput) ([]models.CustomField, error) {
	if len(in) > MaxCustomFields {
		return nil, &ValidationError{Field: "custom_fields", Reason: fmt.Sprintf("at most %d questions", MaxCustomFields)}
	}
	out := make([]models.CustomField, 0, len(in))
	for i, f := range in {
		label := plain(f.Label)
		if label == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("custom_fields[%d].label", i), Reason: "required"}
		}
		id, err := NewFieldID()
		if err != nil {
			return nil, err
		}
		out = append(out, models.CustomField{
			ID:          id,
			Label:       label,
			Placeholder: models.OptionalString(plain(f.Placeholder)),
		})
	}
	if err := ValidateFields(out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewFieldID returns a collision-resistant field id: "f_" followed by a
// UUIDv7, which is a millisecond timestamp plus random bits.
func NewFieldID() (models.FieldID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("field id: %w", err)
	}
	return models.FieldID("f_" + u.String()), nil
}

// ValidateFields checks that every field has an id and a label and that no
// id repeats.
func ValidateFields(fields []models.CustomField) error {
	seen := make(map[models.FieldID]struct{}, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("custom_fields[%d].id", i), Reason: "required"}
		}
		if strings.TrimSpace(f.Label) == "" {
			return &ValidationError{Field: fmt.Sprintf("custom_fields[%d].label", i), Reason: "required"}
		}
		if _, dup := seen[f.ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("custom_fields[%d].id", i), Reason: "duplicate id " + string(f.ID)}
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// plain reduces user text to trimmed plain text.
func plain(s string) string {
	return strings.TrimSpace(htmlsanitize.PlainText(s))
}
