package events

import "time"

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Event struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	Venue                string     `json:"venue"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	MaxParticipants      int        `json:"max_participants,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Status               Status     `json:"status"`
	OrganizerID          string     `json:"organizer_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type Registration struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Filter struct {
	Category string
	Status   Status
	Search   string
	Limit    int
}
