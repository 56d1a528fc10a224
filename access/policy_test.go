package access

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
)

func TestEvaluate(t *testing.T) {
	ownerID := primitive.NewObjectID()
	managerID := primitive.NewObjectID()
	viewerID := primitive.NewObjectID()
	portfolio := &models.Portfolio{
		Owners:   []primitive.ObjectID{ownerID},
		Managers: []primitive.ObjectID{managerID},
		Viewers:  []primitive.ObjectID{viewerID},
	}

	cases := []struct {
		name       string
		user       *models.User
		canManage  bool
		canApprove bool
		member     bool
	}{
		{"global admin outside portfolio", &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}, true, true, true},
		{"owner", &models.User{ID: ownerID, Role: models.RoleManager}, true, false, true},
		{"manager", &models.User{ID: managerID, Role: models.RoleManager}, true, false, true},
		{"viewer", &models.User{ID: viewerID, Role: models.RoleViewer}, false, false, true},
		{"stranger", &models.User{ID: primitive.NewObjectID(), Role: models.RoleViewer}, false, false, false},
	}
	for _, tc := range cases {
		caps := Evaluate(tc.user, portfolio)
		if caps.CanManage != tc.canManage {
			t.Errorf("%s: CanManage = %v, want %v", tc.name, caps.CanManage, tc.canManage)
		}
		if caps.CanApprove != tc.canApprove {
			t.Errorf("%s: CanApprove = %v, want %v", tc.name, caps.CanApprove, tc.canApprove)
		}
		if caps.HasMembership() != tc.member {
			t.Errorf("%s: HasMembership = %v, want %v", tc.name, caps.HasMembership(), tc.member)
		}
	}
}

func TestApprovalAuthorityNeverDelegatedToOwners(t *testing.T) {
	ownerID := primitive.NewObjectID()
	portfolio := &models.Portfolio{Owners: []primitive.ObjectID{ownerID}}
	caps := Evaluate(&models.User{ID: ownerID, Role: models.RoleManager}, portfolio)
	if caps.CanApprove {
		t.Fatal("portfolio owner gained approval authority")
	}
}

func TestAssignMovesUserBetweenBuckets(t *testing.T) {
	userID := primitive.NewObjectID()
	portfolio := &models.Portfolio{Viewers: []primitive.ObjectID{userID}}

	if !Assign(portfolio, userID, models.RoleManager) {
		t.Fatal("assign with valid role failed")
	}
	if portfolio.HasViewer(userID) {
		t.Fatal("user still in viewers after re-assignment")
	}
	if !portfolio.HasManager(userID) {
		t.Fatal("user not placed in managers")
	}

	if !Assign(portfolio, userID, models.RoleAdmin) {
		t.Fatal("assign admin failed")
	}
	if !portfolio.HasOwner(userID) || portfolio.HasManager(userID) {
		t.Fatal("admin assignment should land in owners only")
	}

	if Assign(portfolio, userID, "janitor") {
		t.Fatal("unknown role accepted")
	}
}

func TestBucketForRole(t *testing.T) {
	if b, ok := BucketForRole(models.RoleAdmin); !ok || b != BucketOwners {
		t.Fatalf("admin bucket = %s, %v", b, ok)
	}
	if _, ok := BucketForRole("nobody"); ok {
		t.Fatal("unknown role resolved to a bucket")
	}
}
