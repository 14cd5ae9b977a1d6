package model

import "time"

// Repo is a registered project. It is keyed by a sequential internal ID and
// indexed by a unique external identifier (e.g. a forge's repository ID).
// Repos are never deleted; Active=false is the terminal soft delete, and a
// deactivated repo can be reactivated by its maintainer.
type Repo struct {
	ID          uint64    `json:"id"`
	Maintainer  string    `json:"maintainer"`
	ExternalID  string    `json:"externalId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   []string  `json:"techStack"`
	Topics      []string  `json:"topics"`
	Homepage    string    `json:"homepage"`
	Stars       int       `json:"stars"` // cached external metric
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
