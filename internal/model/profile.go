// Package model defines the entities tracked by the four ledgers.
//
// All monetary amounts are int64 micro-credits: 1 credit = 1,000,000 micro.
// Integer arithmetic keeps fee splits and the reputation formula exact.
package model

import "time"

// ExperienceTier classifies a contributor's self-reported experience.
type ExperienceTier string

const (
	TierBeginner     ExperienceTier = "beginner"
	TierIntermediate ExperienceTier = "intermediate"
	TierAdvanced     ExperienceTier = "advanced"
)

// Role describes how a participant uses the platform. RoleBoth counts
// toward both the contributor and maintainer totals.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleMaintainer  Role = "maintainer"
	RoleBoth        Role = "both"
)

// Profile is a participant's identity record, keyed by owner identity.
// The handle is globally unique and immutable after creation. Reputation
// is derived from CompletedIssues and TotalEarned; it is never stored
// independently except through an explicit admin override.
type Profile struct {
	Owner           string         `json:"owner"`
	Handle          string         `json:"handle"`
	Bio             string         `json:"bio"`
	TechStack       []string       `json:"techStack"`
	Topics          []string       `json:"topics"`
	Tier            ExperienceTier `json:"tier"`
	Role            Role           `json:"role"`
	Reputation      int64          `json:"reputation"`
	CompletedIssues int64          `json:"completedIssues"`
	TotalEarned     int64          `json:"totalEarned"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
