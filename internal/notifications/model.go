package notifications

import "time"

type Type string

const (
	TypeLostFound Type = "lost_found"
	TypeEvent     Type = "event"
	TypeFeedback  Type = "feedback"
	TypeClub      Type = "club"
	TypeGeneral   Type = "general"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
