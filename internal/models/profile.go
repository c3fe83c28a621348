package models

import "time"

// Profile is the display identity of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type SignInRequest struct {
	Email string `json:"email"`
}

type SignInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   Profile   `json:"profile"`
}

// Snapshot is the full state a client loads before following change events.
type Snapshot struct {
	Tasks    []Task      `json:"tasks"`
	Entries  []TimeEntry `json:"entries"`
	Profiles []Profile   `json:"profiles"`
	// Seq is the last change event published before the snapshot was read.
	Seq int64 `json:"seq"`
}

// EmailOf returns the email of the profile with the given id, or "" when unknown.
func (s Snapshot) EmailOf(userID string) string {
	for _, p := range s.Profiles {
		if p.ID == userID {
			return p.Email
		}
	}
	return ""
}
