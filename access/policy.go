// Package access evaluates what a user may do within a portfolio. It is
// pure: no store access, no side effects.
package access

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
)

// Capabilities is the effective permission set of one user on one
// portfolio. CanApprove is strictly global-admin; portfolio owners never
// gain approval authority.
type Capabilities struct {
	IsAdmin   bool
	IsOwner   bool
	IsManager bool
	IsViewer  bool

	CanManage  bool
	CanApprove bool
}

// Evaluate computes the capability set for user on portfolio.
func Evaluate(user *models.User, portfolio *models.Portfolio) Capabilities {
	caps := Capabilities{
		IsAdmin:   user.Role == models.RoleAdmin,
		IsOwner:   portfolio.HasOwner(user.ID),
		IsManager: portfolio.HasManager(user.ID),
		IsViewer:  portfolio.HasViewer(user.ID),
	}
	caps.CanManage = caps.IsAdmin || caps.IsOwner || caps.IsManager
	caps.CanApprove = caps.IsAdmin
	return caps
}

// HasMembership reports whether the user can see the portfolio at all.
func (c Capabilities) HasMembership() bool {
	return c.IsAdmin || c.IsOwner || c.IsManager || c.IsViewer
}

// Membership buckets of a portfolio.
const (
	BucketOwners   = "owners"
	BucketManagers = "managers"
	BucketViewers  = "viewers"
)

// roleBuckets maps a global role to the portfolio bucket that role
// joins when assigned to a portfolio. New roles are a data change here,
// not a code change in the handlers.
var roleBuckets = map[string]string{
	models.RoleAdmin:   BucketOwners,
	models.RoleManager: BucketManagers,
	models.RoleViewer:  BucketViewers,
}

// BucketForRole returns the membership bucket for a global role.
func BucketForRole(role string) (string, bool) {
	b, ok := roleBuckets[role]
	return b, ok
}

// Assign places userID into the portfolio bucket for the given role,
// removing it from the other buckets first so a user sits in exactly
// one bucket. Returns false for an unknown role.
func Assign(p *models.Portfolio, userID primitive.ObjectID, role string) bool {
	bucket, ok := roleBuckets[role]
	if !ok {
		return false
	}
	p.Owners = remove(p.Owners, userID)
	p.Managers = remove(p.Managers, userID)
	p.Viewers = remove(p.Viewers, userID)

	switch bucket {
	case BucketOwners:
		p.Owners = append(p.Owners, userID)
	case BucketManagers:
		p.Managers = append(p.Managers, userID)
	case BucketViewers:
		p.Viewers = append(p.Viewers, userID)
	}
	return true
}

func remove(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
