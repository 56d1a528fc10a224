package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/access"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/blob"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
)

func testEngine(t *testing.T) (*Engine, *store.Memory, *blob.Fake) {
	t.Helper()
	mem := store.NewMemory()
	fake := &blob.Fake{}
	rec := audit.NewRecorder(mem.Audits(), nil)
	return NewEngine(mem, fake, rec), mem, fake
}

func admin() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: "Ada", Role: models.RoleAdmin}
}

func seedField(t *testing.T, mem *store.Memory, status string) *models.DynamicField {
	t.Helper()
	field := &models.DynamicField{
		PortfolioID: primitive.NewObjectID(),
		PropertyID:  primitive.NewObjectID(),
		Name:        "Monthly Rent",
		Category:    models.CategoryRevenue,
		Type:        models.FieldTypeCurrency,
		Frequency:   "monthly",
		Currency:    "AUD",
		Value:       float64(2100),
		Status:      status,
		CreatedBy:   primitive.NewObjectID(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := mem.Fields().Insert(context.Background(), field); err != nil {
		t.Fatalf("insert field: %v", err)
	}
	return field
}

func TestShouldDefer(t *testing.T) {
	cases := []struct {
		name string
		caps access.Capabilities
		want bool
	}{
		{"manager only", access.Capabilities{IsManager: true}, true},
		{"manager and owner", access.Capabilities{IsManager: true, IsOwner: true}, false},
		{"admin manager", access.Capabilities{IsManager: true, IsAdmin: true}, false},
		{"owner", access.Capabilities{IsOwner: true}, false},
		{"viewer", access.Capabilities{IsViewer: true}, false},
	}
	for _, tc := range cases {
		if got := ShouldDefer(tc.caps); got != tc.want {
			t.Errorf("%s: ShouldDefer = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStageRejectsDuplicatePending(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	field := seedField(t, mem, models.StatusApproved)

	in := StageInput{
		Kind:        models.ApprovalKindField,
		Action:      models.ActionUpdate,
		RefID:       field.ID,
		PropertyID:  field.PropertyID,
		PortfolioID: field.PortfolioID,
		SubmittedBy: primitive.NewObjectID(),
		Payload: models.ApprovalPayload{Field: &models.FieldChange{
			Original: field,
			Proposed: &models.FieldUpdate{Value: float64(2500)},
		}},
	}

	if _, err := engine.Stage(ctx, in); err != nil {
		t.Fatalf("first stage: %v", err)
	}
	if _, err := engine.Stage(ctx, in); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("second stage: got %v, want ErrAlreadyPending", err)
	}

	pending, err := mem.Approvals().List(ctx, models.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(pending))
	}
}

func TestStageUpdateLeavesEntityUntouched(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	field := seedField(t, mem, models.StatusApproved)

	newValue := float64(9999)
	if _, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindField,
		Action:      models.ActionUpdate,
		RefID:       field.ID,
		PropertyID:  field.PropertyID,
		PortfolioID: field.PortfolioID,
		SubmittedBy: primitive.NewObjectID(),
		Payload: models.ApprovalPayload{Field: &models.FieldChange{
			Original: field,
			Proposed: &models.FieldUpdate{Value: newValue},
		}},
	}); err != nil {
		t.Fatalf("stage: %v", err)
	}

	live, err := mem.Fields().FindByID(ctx, field.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if live.Value != float64(2100) {
		t.Fatalf("live value = %v, want 2100 (untouched)", live.Value)
	}
}

type failingApprovals struct {
	store.ApprovalStore
}

func (failingApprovals) Insert(context.Context, *models.ApprovalRequest) error {
	return errors.New("insert refused")
}

type failingStore struct {
	*store.Memory
}

func (f failingStore) Approvals() store.ApprovalStore {
	return failingApprovals{f.Memory.Approvals()}
}

func TestStageCompensatesOnInsertFailure(t *testing.T) {
	mem := store.NewMemory()
	rec := audit.NewRecorder(mem.Audits(), nil)
	engine := NewEngine(failingStore{mem}, &blob.Fake{}, rec)
	ctx := context.Background()

	field := seedField(t, mem, models.StatusPending)

	_, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindField,
		Action:      models.ActionCreate,
		RefID:       field.ID,
		PropertyID:  field.PropertyID,
		PortfolioID: field.PortfolioID,
		SubmittedBy: field.CreatedBy,
		Payload:     models.ApprovalPayload{Field: &models.FieldChange{Created: field}},
		Compensate: func(ctx context.Context) error {
			return mem.Fields().Delete(ctx, field.ID)
		},
	})
	if err == nil {
		t.Fatal("stage succeeded, want insert failure")
	}

	if _, err := mem.Fields().FindByID(ctx, field.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("provisional field survived compensation: %v", err)
	}
}

func stagePendingFieldUpdate(t *testing.T, engine *Engine, mem *store.Memory) (*models.ApprovalRequest, *models.DynamicField) {
	t.Helper()
	ctx := context.Background()
	field := seedField(t, mem, models.StatusApproved)
	newValue := float64(2500)
	req, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindField,
		Action:      models.ActionUpdate,
		RefID:       field.ID,
		PropertyID:  field.PropertyID,
		PortfolioID: field.PortfolioID,
		SubmittedBy: primitive.NewObjectID(),
		Payload: models.ApprovalPayload{Field: &models.FieldChange{
			Original: field,
			Proposed: &models.FieldUpdate{Value: newValue},
		}},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	return req, field
}

func TestResolveApproveFieldUpdateMerges(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	req, field := stagePendingFieldUpdate(t, engine, mem)
	reviewer := admin()

	resolved, err := engine.Resolve(ctx, req.ID, DecisionApprove, reviewer, "looks right")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.StatusApproved {
		t.Fatalf("request status = %s, want approved", resolved.Status)
	}
	if resolved.ReviewedBy != reviewer.ID {
		t.Fatal("reviewedBy not set")
	}

	live, err := mem.Fields().FindByID(ctx, field.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if live.Value != float64(2500) {
		t.Fatalf("merged value = %v, want 2500", live.Value)
	}
	if live.Name != "Monthly Rent" {
		t.Fatalf("unproposed field changed: name = %q", live.Name)
	}
	if live.Status != models.StatusApproved || live.ApprovedBy != reviewer.ID {
		t.Fatalf("field status/approver = %s/%s", live.Status, live.ApprovedBy.Hex())
	}
}

func TestResolveRejectFieldUpdateLeavesLiveData(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	req, field := stagePendingFieldUpdate(t, engine, mem)

	if _, err := engine.Resolve(ctx, req.ID, DecisionReject, admin(), "no"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	live, err := mem.Fields().FindByID(ctx, field.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if live.Value != float64(2100) || live.Status != models.StatusApproved {
		t.Fatalf("rejected update touched live field: value=%v status=%s", live.Value, live.Status)
	}
}

func TestResolveTwiceConflicts(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	req, field := stagePendingFieldUpdate(t, engine, mem)

	if _, err := engine.Resolve(ctx, req.ID, DecisionApprove, admin(), ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := engine.Resolve(ctx, req.ID, DecisionReject, admin(), ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve: got %v, want ErrAlreadyResolved", err)
	}

	// Entity reflects the first resolution only.
	live, _ := mem.Fields().FindByID(ctx, field.ID)
	if live.Value != float64(2500) {
		t.Fatalf("value = %v, want 2500 from first resolution", live.Value)
	}
}

func TestResolveUnknownAndInvalid(t *testing.T) {
	engine, _, _ := testEngine(t)
	ctx := context.Background()

	if _, err := engine.Resolve(ctx, primitive.NewObjectID(), DecisionApprove, admin(), ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown approval: got %v, want ErrNotFound", err)
	}
	if _, err := engine.Resolve(ctx, primitive.NewObjectID(), "maybe", admin(), ""); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("bad decision: got %v, want ErrInvalidDecision", err)
	}
}

func TestResolveRejectDocumentCreateReleasesBlob(t *testing.T) {
	engine, mem, fake := testEngine(t)
	ctx := context.Background()

	doc := &models.Document{
		PropertyID: primitive.NewObjectID(),
		Name:       "Lease agreement",
		URL:        "https://utfs.io/f/lease-123",
		FileType:   "application/pdf",
		UploadedBy: primitive.NewObjectID(),
		Status:     models.StatusPending,
	}
	if err := mem.Documents().Insert(ctx, doc); err != nil {
		t.Fatalf("insert doc: %v", err)
	}

	req, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindDocument,
		Action:      models.ActionCreate,
		RefID:       doc.ID,
		PropertyID:  doc.PropertyID,
		PortfolioID: primitive.NewObjectID(),
		SubmittedBy: doc.UploadedBy,
		Payload:     models.ApprovalPayload{Document: &models.DocumentChange{Created: doc}},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if _, err := engine.Resolve(ctx, req.ID, DecisionReject, admin(), "wrong file"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got := fake.Count(doc.URL); got != 1 {
		t.Fatalf("blob delete calls = %d, want 1", got)
	}
	live, err := mem.Documents().FindByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("document record removed, want retained: %v", err)
	}
	if live.Status != models.StatusRejected {
		t.Fatalf("document status = %s, want rejected", live.Status)
	}
}

func TestResolveApproveDocumentDeleteRemovesFileAndRecord(t *testing.T) {
	engine, mem, fake := testEngine(t)
	ctx := context.Background()

	doc := &models.Document{
		PropertyID: primitive.NewObjectID(),
		Name:       "Old inspection report",
		URL:        "https://utfs.io/f/report-9",
		UploadedBy: primitive.NewObjectID(),
		Status:     models.StatusApproved,
	}
	if err := mem.Documents().Insert(ctx, doc); err != nil {
		t.Fatalf("insert doc: %v", err)
	}

	req, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindDocument,
		Action:      models.ActionDelete,
		RefID:       doc.ID,
		PropertyID:  doc.PropertyID,
		PortfolioID: primitive.NewObjectID(),
		SubmittedBy: primitive.NewObjectID(),
		Payload:     models.ApprovalPayload{Document: &models.DocumentChange{Original: doc}},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if _, err := engine.Resolve(ctx, req.ID, DecisionApprove, admin(), ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := fake.Count(doc.URL); got != 1 {
		t.Fatalf("blob delete calls = %d, want 1", got)
	}
	if _, err := mem.Documents().FindByID(ctx, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("document still present after approved delete: %v", err)
	}
}

func TestResolveApprovePropertyCreatePromotesSeededFields(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	reviewer := admin()

	property := &models.Property{
		PortfolioID: primitive.NewObjectID(),
		Name:        "12 Harbour St",
		Address:     "12 Harbour St, Sydney",
		Status:      models.PropertyStatusPending,
		CreatedBy:   primitive.NewObjectID(),
	}
	if err := mem.Properties().Insert(ctx, property); err != nil {
		t.Fatalf("insert property: %v", err)
	}
	for i := 0; i < 2; i++ {
		field := &models.DynamicField{
			PortfolioID: property.PortfolioID,
			PropertyID:  property.ID,
			Name:        "Seeded",
			Category:    models.CategoryValue,
			Type:        models.FieldTypeCurrency,
			Status:      models.StatusPending,
			CreatedBy:   property.CreatedBy,
		}
		if err := mem.Fields().Insert(ctx, field); err != nil {
			t.Fatalf("insert field: %v", err)
		}
	}

	intended := models.PropertyStatusActive
	req, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindProperty,
		Action:      models.ActionCreate,
		RefID:       property.ID,
		PropertyID:  property.ID,
		PortfolioID: property.PortfolioID,
		SubmittedBy: property.CreatedBy,
		Payload: models.ApprovalPayload{Property: &models.PropertyChange{
			Created:  property,
			Proposed: &models.PropertyUpdate{Status: &intended},
		}},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if _, err := engine.Resolve(ctx, req.ID, DecisionApprove, reviewer, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	live, err := mem.Properties().FindByID(ctx, property.ID)
	if err != nil {
		t.Fatalf("find property: %v", err)
	}
	if live.Status != models.PropertyStatusActive {
		t.Fatalf("property status = %s, want active", live.Status)
	}
	if live.UpdatedBy != reviewer.ID {
		t.Fatal("updatedBy not set to reviewer")
	}

	fields, _ := mem.Fields().ListByProperty(ctx, property.ID)
	for _, f := range fields {
		if f.Status != models.StatusApproved || f.ApprovedBy != reviewer.ID {
			t.Fatalf("seeded field not promoted: status=%s", f.Status)
		}
	}
}

func TestResolveRejectPropertyCreateRemovesProvisionalRecords(t *testing.T) {
	engine, mem, fake := testEngine(t)
	ctx := context.Background()

	property := &models.Property{
		PortfolioID: primitive.NewObjectID(),
		Name:        "4 Beach Rd",
		Address:     "4 Beach Rd, Perth",
		Status:      models.PropertyStatusPending,
		ImageURL:    "https://utfs.io/f/house-4",
		CreatedBy:   primitive.NewObjectID(),
	}
	if err := mem.Properties().Insert(ctx, property); err != nil {
		t.Fatalf("insert property: %v", err)
	}
	field := &models.DynamicField{
		PortfolioID: property.PortfolioID,
		PropertyID:  property.ID,
		Name:        "Property Value",
		Category:    models.CategoryValue,
		Type:        models.FieldTypeCurrency,
		Status:      models.StatusPending,
		CreatedBy:   property.CreatedBy,
	}
	if err := mem.Fields().Insert(ctx, field); err != nil {
		t.Fatalf("insert field: %v", err)
	}

	req, err := engine.Stage(ctx, StageInput{
		Kind:        models.ApprovalKindProperty,
		Action:      models.ActionCreate,
		RefID:       property.ID,
		PropertyID:  property.ID,
		PortfolioID: property.PortfolioID,
		SubmittedBy: property.CreatedBy,
		Payload:     models.ApprovalPayload{Property: &models.PropertyChange{Created: property}},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if _, err := engine.Resolve(ctx, req.ID, DecisionReject, admin(), "duplicate listing"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := mem.Properties().FindByID(ctx, property.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("provisional property survived rejection: %v", err)
	}
	if _, err := mem.Fields().FindByID(ctx, field.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("seeded field survived rejection: %v", err)
	}
	if got := fake.Count(property.ImageURL); got != 1 {
		t.Fatalf("image blob delete calls = %d, want 1", got)
	}
}

func TestResolveWritesAuditEntry(t *testing.T) {
	engine, mem, _ := testEngine(t)
	ctx := context.Background()
	req, _ := stagePendingFieldUpdate(t, engine, mem)
	reviewer := admin()

	if _, err := engine.Resolve(ctx, req.ID, DecisionApprove, reviewer, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	entries, err := mem.Audits().List(ctx, store.AuditFilter{})
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.UserID != reviewer.ID || e.TargetID != req.RefID {
		t.Fatalf("audit entry actor/target wrong: %+v", e)
	}
	if e.Changes.Before == nil || e.Changes.After == nil {
		t.Fatal("audit entry missing before/after snapshots")
	}
}
