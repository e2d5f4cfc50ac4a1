package identity

import "time"

// Profile is the presence-affecting slice of a user record owned by the main
// PairPlay API.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	PartnerID   string `json:"partnerId,omitempty"`
	CoupleID    string `json:"coupleId,omitempty"`
}

// Paired reports whether the user has an established pairing.
func (p *Profile) Paired() bool {
	return p != nil && p.PartnerID != "" && p.CoupleID != ""
}

// Activity is one entry of a couple's recent-activity feed.
type Activity struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	UserID      string         `json:"userId"`
	Icon        string         `json:"icon,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type presenceUpdate struct {
	Online     *bool      `json:"online,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Health is the PairPlay API health response.
type Health struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
