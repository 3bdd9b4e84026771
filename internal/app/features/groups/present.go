// internal/app/features/groups/present.go
package groups

import (
	"time"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"github.com/dalemusser/giftexchange/internal/app/policy/grouppolicy"
	"github.com/dalemusser/giftexchange/internal/domain/models"
)

type summaryJSON struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	OwnerName   string     `json:"owner_name"`
	MemberCount int        `json:"member_count"`
	IsOwner     bool       `json:"is_owner"`
	Drawn       bool       `json:"drawn"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type memberJSON struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	PhotoURL    *string `json:"photo_url,omitempty"`
	IsOwner     bool    `json:"is_owner,omitempty"`
}

type answerJSON struct {
	FieldID models.FieldID `json:"field_id"`
	Label   string         `json:"label"`
	Answer  string         `json:"answer"`
}

type detailJSON struct {
	ID            string               `json:"id"`
	JoinCode      string               `json:"join_code"`
	Name          string               `json:"name"`
	Description   *string              `json:"description,omitempty"`
	OwnerID       string               `json:"owner_id"`
	OwnerName     string               `json:"owner_name"`
	OwnerPhotoURL *string              `json:"owner_photo_url,omitempty"`
	IsOwner       bool                 `json:"is_owner"`
	Members       []memberJSON         `json:"members"`
	CustomFields  []models.CustomField `json:"custom_fields"`
	MyResponses   []answerJSON         `json:"my_responses"`
	CreatedAt     *time.Time           `json:"created_at,omitempty"`
	DrawRunAt     *time.Time           `json:"draw_run_at,omitempty"`
	MyAssignment  *assignmentJSON      `json:"my_assignment,omitempty"`
}

type assignmentJSON struct {
	Drawn             bool         `json:"drawn"`
	RecipientID       string       `json:"recipient_id,omitempty"`
	RecipientName     string       `json:"recipient_name,omitempty"`
	RecipientPhotoURL *string      `json:"recipient_photo_url,omitempty"`
	RecipientAnswers  []answerJSON `json:"recipient_answers,omitempty"`
	DrawRunAt         *time.Time   `json:"draw_run_at,omitempty"`
}

type directoryJSON struct {
	Groups     []summaryJSON   `json:"groups"`
	SelectedID string          `json:"selected_id,omitempty"`
	Selected   *detailJSON     `json:"selected,omitempty"`
	Banner     string          `json:"banner,omitempty"`
	Flash      *exchange.Flash `json:"flash,omitempty"`
	Loaded     bool            `json:"loaded"`
}

func summary(g models.Group, viewerID string) summaryJSON {
	return summaryJSON{
		ID:          g.ID.Hex(),
		Name:        g.Name,
		OwnerName:   g.OwnerName,
		MemberCount: len(g.MemberIDs),
		IsOwner:     grouppolicy.IsOwner(g, viewerID),
		Drawn:       g.Assignments != nil,
		CreatedAt:   g.CreatedAt,
	}
}

// detail is the member view of g. It carries the viewer's own answers and
// assignment only; other members' answers and assignments stay private.
func detail(g models.Group, viewerID string) detailJSON {
	d := detailJSON{
		ID:            g.ID.Hex(),
		JoinCode:      g.JoinCode(),
		Name:          g.Name,
		Description:   g.Description,
		OwnerID:       g.OwnerID,
		OwnerName:     g.OwnerName,
		OwnerPhotoURL: g.OwnerPhotoURL,
		IsOwner:       grouppolicy.IsOwner(g, viewerID),
		Members:       make([]memberJSON, 0, len(g.MemberIDs)),
		CustomFields:  g.CustomFields,
		MyResponses:   answers(g, viewerID),
		CreatedAt:     g.CreatedAt,
		DrawRunAt:     g.DrawRunAt,
	}
	if d.CustomFields == nil {
		d.CustomFields = []models.CustomField{}
	}
	for _, id := range g.MemberIDs {
		p := g.Members[id]
		d.Members = append(d.Members, memberJSON{
			ID:          id,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			IsOwner:     id == g.OwnerID,
		})
	}
	if g.Assignments != nil {
		a := assignment(g, viewerID)
		d.MyAssignment = &a
	}
	return d
}

// assignment is what viewerID drew, with the recipient's answers so the
// giver knows what to buy.
func assignment(g models.Group, viewerID string) assignmentJSON {
	a, ok := g.AssignmentFor(viewerID)
	if !ok {
		return assignmentJSON{Drawn: false}
	}
	return assignmentJSON{
		Drawn:             true,
		RecipientID:       a.RecipientID,
		RecipientName:     a.RecipientName,
		RecipientPhotoURL: a.RecipientPhotoURL,
		RecipientAnswers:  answers(g, a.RecipientID),
		DrawRunAt:         g.DrawRunAt,
	}
}

// answers lists userID's responses in schema order.
func answers(g models.Group, userID string) []answerJSON {
	out := []answerJSON{}
	given := g.MemberResponses[userID]
	for _, f := range g.CustomFields {
		if v, ok := given[f.ID]; ok {
			out = append(out, answerJSON{FieldID: f.ID, Label: f.Label, Answer: v})
		}
	}
	return out
}

func directory(v exchange.View, viewerID string) directoryJSON {
	out := directoryJSON{
		Groups:     make([]summaryJSON, 0, len(v.Groups)),
		SelectedID: v.SelectedID,
		Banner:     v.Banner,
		Flash:      v.Flash,
		Loaded:     v.Loaded,
	}
	for _, g := range v.Groups {
		out.Groups = append(out.Groups, summary(g, viewerID))
	}
	if v.Selected != nil {
		d := detail(*v.Selected, viewerID)
		out.Selected = &d
	}
	return out
}
