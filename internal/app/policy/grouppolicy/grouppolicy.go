// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import "github.com/dalemusser/giftexchange/internal/domain/models"

// IsOwner reports whether userID organized the group.
func IsOwner(g models.Group, userID string) bool {
	return userID != "" && g.OwnerID == userID
}

// CanView reports whether userID may see the group: members only.
func CanView(g models.Group, userID string) bool {
	return userID != "" && g.HasMember(userID)
}

// CanDraw reports whether userID may run (or re-run) the draw.
func CanDraw(g models.Group, userID string) bool {
	return IsOwner(g, userID)
}

// CanDelete reports whether userID may delete the group.
func CanDelete(g models.Group, userID string) bool {
	return IsOwner(g, userID)
}
