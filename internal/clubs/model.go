package clubs

import "time"

type Club struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Advisor     string    `json:"advisor,omitempty"`
	CreatedBy   string    `json:"created_by"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MemberRole string

const (
	MemberRoleMember      MemberRole = "member"
	MemberRoleCoordinator MemberRole = "coordinator"
	MemberRolePresident   MemberRole = "president"
)

type Membership struct {
	ClubID   string     `json:"club_id"`
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	Status   string     `json:"status"`
	JoinedAt time.Time  `json:"joined_at"`
}

type Filter struct {
	Category string
	Search   string
	Limit    int
}
