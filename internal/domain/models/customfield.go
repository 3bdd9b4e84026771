// internal/domain/models/customfield.go
package models

// FieldID identifies a custom field within one group. It keys both the
// schema and every member's answers.
type FieldID string

// CustomField is one question asked of members when they join.
type CustomField struct {
	ID          FieldID `bson:"id" json:"id"`
	Label       string  `bson:"label" json:"label"`
	Placeholder *string `bson:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// Clone copies the field, including the optional placeholder.
func (f CustomField) Clone() CustomField {
	f.Placeholder = CloneString(f.Placeholder)
	return f
}

// CloneResponses copies a member's answers.
func CloneResponses(in map[FieldID]string) map[FieldID]string {
	if in == nil {
		return nil
	}
	out := make(map[FieldID]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
