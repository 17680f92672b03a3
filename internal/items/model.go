package items

import "time"

type Type string

const (
	TypeLost  Type = "lost"
	TypeFound Type = "found"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusClaimed  Status = "claimed"
	StatusReturned Status = "returned"
	StatusClosed   Status = "closed"
)

type Item struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Location      string    `json:"location"`
	ContactInfo   string    `json:"contact_info"`
	DateLostFound time.Time `json:"date_lost_found"`
	Status        Status    `json:"status"`
	Tags          []string  `json:"tags"`
	ReportedBy    string    `json:"reported_by"`
	ClaimedBy     string    `json:"claimed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

type Claim struct {
	ID          string      `json:"id"`
	ItemID      string      `json:"item_id"`
	ClaimerID   string      `json:"claimer_id"`
	Description string      `json:"description"`
	Status      ClaimStatus `json:"status"`
	AdminNotes  string      `json:"admin_notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Filter struct {
	Type     Type
	Status   Status
	Category string
	Search   string
	Reporter string
	Limit    int
}
