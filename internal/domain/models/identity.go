// internal/domain/models/identity.go
package models

// Identity is the signed-in user as reported by the identity provider.
// ID is stable across sessions; every other field is display data.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Name returns the display name, falling back to the email and then to a
// generic label so member lists never show a blank entry.
func (i Identity) Name() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	default:
		return "Anonymous"
	}
}

// Profile is the member snapshot taken from this identity.
func (i Identity) Profile() MemberProfile {
	return MemberProfile{
		DisplayName: i.Name(),
		PhotoURL:    OptionalString(i.PhotoURL),
	}
}
