package model

import "time"

// Tier is the ordered privilege level of a user.  Higher tiers relax
// eligibility exception clauses; the ordering is significant and the
// numeric values are stored in the users.tier column.
type Tier uint8

const (
	TierUser    Tier = 0 // base tier, no bidding rights
	TierGuest   Tier = 1
	TierRegular Tier = 2
	TierSenior  Tier = 3
	TierAdmin   Tier = 4
)

// String returns the lowercase name of the tier.
func (t Tier) String() string {
	switch t {
	case TierUser:
		return "user"
	case TierGuest:
		return "guest"
	case TierRegular:
		return "regular"
	case TierSenior:
		return "senior"
	case TierAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// User represents an applicant as stored in the users table.  Only the
// fields the attribution engine reads are modeled; account management
// lives in a separate collaborator.
//
// Fields:
//  ID        – primary key identifier.
//  Tier      – highest privilege tier held by the user.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type User struct {
	ID        uint64    // users.id
	Tier      Tier      // users.tier
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}
