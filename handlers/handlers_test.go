package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/blob"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
)

type fixture struct {
	store *store.Memory
	blobs *blob.Fake

	admin     *models.User
	owner     *models.User
	manager   *models.User
	viewer    *models.User
	portfolio *models.Portfolio
}

// setup wires the handler package against the in-memory store and
// seeds one portfolio with an owner, a manager, and a viewer.
func setup(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	fake := blob.NewFake()
	rec := audit.NewRecorder(mem.Audits(), nil)
	eng := approval.NewEngine(mem, fake, rec)
	Init(mem, fake, eng, rec, nil)

	ctx := context.Background()
	f := &fixture{store: mem, blobs: fake}

	mk := func(name, role string) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Role: role}
		if err := mem.Users().Insert(ctx, u); err != nil {
			t.Fatalf("insert user %s: %v", name, err)
		}
		return u
	}
	f.admin = mk("alice", models.RoleAdmin)
	f.owner = mk("owen", models.RoleManager)
	f.manager = mk("mandy", models.RoleManager)
	f.viewer = mk("vera", models.RoleViewer)

	f.portfolio = &models.Portfolio{
		Name:     "Coastal Holdings",
		Entity:   "Coastal Holdings Pty Ltd",
		Owners:   []primitive.ObjectID{f.owner.ID},
		Managers: []primitive.ObjectID{f.manager.ID},
		Viewers:  []primitive.ObjectID{f.viewer.ID},
	}
	if err := mem.Portfolios().Insert(ctx, f.portfolio); err != nil {
		t.Fatalf("insert portfolio: %v", err)
	}
	return f
}

func (f *fixture) addProperty(t *testing.T, name string) *models.Property {
	t.Helper()
	p := &models.Property{
		PortfolioID: f.portfolio.ID,
		Name:        name,
		Address:     "1 Test St",
		Status:      models.PropertyStatusActive,
		CreatedBy:   f.owner.ID,
		UpdatedBy:   f.owner.ID,
	}
	if err := f.store.Properties().Insert(context.Background(), p); err != nil {
		t.Fatalf("insert property: %v", err)
	}
	return p
}

// request builds an authenticated request with route variables set.
func request(t *testing.T, user *models.User, method, target string, body any, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	if user != nil {
		ctx := context.WithValue(r.Context(), "userID", user.ID.Hex())
		ctx = context.WithValue(ctx, "userName", user.Name)
		ctx = context.WithValue(ctx, "userRole", user.Role)
		r = r.WithContext(ctx)
	}
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestManagerPropertyUpdateApprovalFlow(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "Old Name")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	// Manager submits a rename: deferred, not applied.
	w := httptest.NewRecorder()
	UpdateProperty(w, request(t, f.manager, "PUT", "/api/portfolios/x/properties/y",
		map[string]string{"name": "New Name"}, vars))
	if w.Code != http.StatusAccepted {
		t.Fatalf("manager update status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var staged struct {
		Approval models.ApprovalRequest `json:"approval"`
	}
	decode(t, w, &staged)
	if staged.Approval.Status != models.StatusPending {
		t.Fatalf("approval status = %s, want pending", staged.Approval.Status)
	}

	// The live property still shows the old name.
	w = httptest.NewRecorder()
	GetProperty(w, request(t, f.viewer, "GET", "/api/portfolios/x/properties/y", nil, vars))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", w.Code, w.Body.String())
	}
	var view propertyView
	decode(t, w, &view)
	if view.Name != "Old Name" {
		t.Fatalf("name before approval = %q, want Old Name", view.Name)
	}

	// Admin approves.
	w = httptest.NewRecorder()
	Decide(w, request(t, f.admin, "POST", "/api/approvals/decide", map[string]string{
		"approvalId": staged.Approval.ID.Hex(),
		"decision":   "approve",
	}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("decide status = %d: %s", w.Code, w.Body.String())
	}

	// The rename is live now.
	w = httptest.NewRecorder()
	GetProperty(w, request(t, f.viewer, "GET", "/api/portfolios/x/properties/y", nil, vars))
	decode(t, w, &view)
	if view.Name != "New Name" {
		t.Fatalf("name after approval = %q, want New Name", view.Name)
	}

	// Two audit entries reference the property: submit and approve.
	entries, err := f.store.Audits().List(context.Background(), store.AuditFilter{})
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	matching := 0
	for _, e := range entries {
		if e.TargetID == property.ID {
			matching++
		}
	}
	if matching != 2 {
		t.Fatalf("audit entries for property = %d, want 2", matching)
	}
}

func TestOwnerPropertyUpdateAppliesDirectly(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "Harbour View")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	w := httptest.NewRecorder()
	UpdateProperty(w, request(t, f.owner, "PUT", "/api/portfolios/x/properties/y",
		map[string]string{"address": "2 New St"}, vars))
	if w.Code != http.StatusOK {
		t.Fatalf("owner update status = %d, want 200: %s", w.Code, w.Body.String())
	}

	pending, _ := f.store.Approvals().List(context.Background(), models.StatusPending)
	if len(pending) != 0 {
		t.Fatalf("owner update created %d approval requests, want 0", len(pending))
	}

	live, _ := f.store.Properties().FindByID(context.Background(), property.ID)
	if live.Address != "2 New St" {
		t.Fatalf("address = %q, want applied immediately", live.Address)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "Locked")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	w := httptest.NewRecorder()
	UpdateProperty(w, request(t, f.viewer, "PUT", "/api/portfolios/x/properties/y",
		map[string]string{"name": "Hacked"}, vars))
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer update status = %d, want 403", w.Code)
	}
}

func TestManagerDocumentRejectFlow(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "With Docs")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	w := httptest.NewRecorder()
	CreateDocument(w, request(t, f.manager, "POST", "/api/portfolios/x/properties/y/documents",
		map[string]any{"name": "Lease", "url": "https://utfs.io/f/lease-1", "fileType": "application/pdf"}, vars))
	if w.Code != http.StatusAccepted {
		t.Fatalf("manager upload status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var staged struct {
		Document models.Document        `json:"document"`
		Approval models.ApprovalRequest `json:"approval"`
	}
	decode(t, w, &staged)
	if staged.Document.Status != models.StatusPending {
		t.Fatalf("document status = %s, want pending", staged.Document.Status)
	}

	w = httptest.NewRecorder()
	Decide(w, request(t, f.admin, "POST", "/api/approvals/decide", map[string]string{
		"approvalId": staged.Approval.ID.Hex(),
		"decision":   "reject",
		"comments":   "wrong file",
	}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("decide status = %d: %s", w.Code, w.Body.String())
	}

	if got := f.blobs.Count("https://utfs.io/f/lease-1"); got != 1 {
		t.Fatalf("blob delete calls = %d, want 1", got)
	}
	doc, err := f.store.Documents().FindByID(context.Background(), staged.Document.ID)
	if err != nil {
		t.Fatalf("document record removed, want retained: %v", err)
	}
	if doc.Status != models.StatusRejected {
		t.Fatalf("document status = %s, want rejected", doc.Status)
	}
}

func TestDeleteDocumentScopedToPortfolio(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "With Docs")

	ctx := context.Background()
	doc := &models.Document{
		PropertyID: property.ID,
		Name:       "Lease",
		URL:        "https://utfs.io/f/lease-1",
		UploadedBy: f.owner.ID,
		Status:     models.StatusApproved,
	}
	if err := f.store.Documents().Insert(ctx, doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	// A second portfolio whose owner has no standing on the first.
	rival := &models.User{Name: "rhea", Email: "rhea@example.com", Role: models.RoleManager}
	if err := f.store.Users().Insert(ctx, rival); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	other := &models.Portfolio{
		Name:   "Inland Holdings",
		Entity: "Inland Holdings Pty Ltd",
		Owners: []primitive.ObjectID{rival.ID},
	}
	if err := f.store.Portfolios().Insert(ctx, other); err != nil {
		t.Fatalf("insert portfolio: %v", err)
	}

	w := httptest.NewRecorder()
	DeleteDocument(w, request(t, rival, "DELETE", "/api/portfolios/x/documents/y", nil,
		map[string]string{"id": other.ID.Hex(), "docId": doc.ID.Hex()}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-portfolio delete status = %d, want 404: %s", w.Code, w.Body.String())
	}
	if _, err := f.store.Documents().FindByID(ctx, doc.ID); err != nil {
		t.Fatalf("document removed, want retained: %v", err)
	}
	if got := f.blobs.Count(doc.URL); got != 0 {
		t.Fatalf("blob delete calls = %d, want 0", got)
	}
}

func TestDuplicateStagingConflicts(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "Twice")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	w := httptest.NewRecorder()
	UpdateProperty(w, request(t, f.manager, "PUT", "/x", map[string]string{"name": "A"}, vars))
	if w.Code != http.StatusAccepted {
		t.Fatalf("first stage status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	UpdateProperty(w, request(t, f.manager, "PUT", "/x", map[string]string{"name": "B"}, vars))
	if w.Code != http.StatusConflict {
		t.Fatalf("second stage status = %d, want 409", w.Code)
	}
}

func TestAdminSelfDeleteForbidden(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	DeleteUser(w, request(t, f.admin, "DELETE", "/api/users/x", nil,
		map[string]string{"id": f.admin.ID.Hex()}))
	if w.Code != http.StatusForbidden {
		t.Fatalf("self delete status = %d, want 403", w.Code)
	}
	if _, err := f.store.Users().FindByID(context.Background(), f.admin.ID); err != nil {
		t.Fatalf("admin account removed: %v", err)
	}
}

func TestManagerPropertyCreateIsProvisional(t *testing.T) {
	f := setup(t)
	vars := map[string]string{"id": f.portfolio.ID.Hex()}

	w := httptest.NewRecorder()
	CreateProperty(w, request(t, f.manager, "POST", "/api/portfolios/x/properties",
		map[string]string{"name": "New Build", "address": "3 Crane Way"}, vars))
	if w.Code != http.StatusAccepted {
		t.Fatalf("manager create status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var staged struct {
		Property models.Property `json:"property"`
	}
	decode(t, w, &staged)
	if staged.Property.Status != models.PropertyStatusPending {
		t.Fatalf("property status = %s, want pending", staged.Property.Status)
	}

	// Seeded defaults arrive pending too.
	fields, _ := f.store.Fields().ListByProperty(context.Background(), staged.Property.ID)
	if len(fields) != 4 {
		t.Fatalf("seeded fields = %d, want 4", len(fields))
	}
	for _, fl := range fields {
		if fl.Status != models.StatusPending {
			t.Fatalf("seeded field %q status = %s, want pending", fl.Name, fl.Status)
		}
	}

	// A viewer cannot see the provisional property.
	w = httptest.NewRecorder()
	GetProperty(w, request(t, f.viewer, "GET", "/x", nil, map[string]string{
		"id": f.portfolio.ID.Hex(), "propertyId": staged.Property.ID.Hex(),
	}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("viewer sees provisional property: status = %d, want 404", w.Code)
	}

	// The creator still can.
	w = httptest.NewRecorder()
	GetProperty(w, request(t, f.manager, "GET", "/x", nil, map[string]string{
		"id": f.portfolio.ID.Hex(), "propertyId": staged.Property.ID.Hex(),
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("creator cannot see provisional property: status = %d", w.Code)
	}
}

func TestOwnerPropertyCreateSeedsApprovedFields(t *testing.T) {
	f := setup(t)
	vars := map[string]string{"id": f.portfolio.ID.Hex()}

	w := httptest.NewRecorder()
	CreateProperty(w, request(t, f.owner, "POST", "/x",
		map[string]string{"name": "Direct Build", "address": "9 Main St"}, vars))
	if w.Code != http.StatusCreated {
		t.Fatalf("owner create status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created models.Property
	decode(t, w, &created)
	if created.Status != models.PropertyStatusActive {
		t.Fatalf("status = %s, want active", created.Status)
	}

	fields, _ := f.store.Fields().ListByProperty(context.Background(), created.ID)
	if len(fields) != 4 {
		t.Fatalf("seeded fields = %d, want 4", len(fields))
	}
	names := map[string]bool{}
	for _, fl := range fields {
		names[fl.Name] = true
		if fl.Status != models.StatusApproved {
			t.Fatalf("field %q status = %s, want approved", fl.Name, fl.Status)
		}
	}
	for _, want := range []string{"Property Value", "Monthly Rent", "Utilities", "Furniture Asset Value"} {
		if !names[want] {
			t.Fatalf("default field %q missing", want)
		}
	}
}

func TestDeletePortfolioRefusedWhileNotEmpty(t *testing.T) {
	f := setup(t)
	f.addProperty(t, "Blocker")

	w := httptest.NewRecorder()
	DeletePortfolio(w, request(t, f.admin, "DELETE", "/x", nil,
		map[string]string{"id": f.portfolio.ID.Hex()}))
	if w.Code != http.StatusConflict {
		t.Fatalf("delete status = %d, want 409", w.Code)
	}
}

func TestAuditLogTodayFilter(t *testing.T) {
	f := setup(t)
	property := f.addProperty(t, "Audited")
	vars := map[string]string{"id": f.portfolio.ID.Hex(), "propertyId": property.ID.Hex()}

	// One entry by the owner, one by the admin.
	w := httptest.NewRecorder()
	UpdateProperty(w, request(t, f.owner, "PUT", "/x", map[string]string{"name": "A"}, vars))
	if w.Code != http.StatusOK {
		t.Fatalf("owner update: %d", w.Code)
	}
	w = httptest.NewRecorder()
	UpdateProperty(w, request(t, f.admin, "PUT", "/x", map[string]string{"name": "B"}, vars))
	if w.Code != http.StatusOK {
		t.Fatalf("admin update: %d", w.Code)
	}

	w = httptest.NewRecorder()
	ListAuditLog(w, request(t, f.admin, "GET", "/api/audit-log?today=true", nil, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("audit list status = %d: %s", w.Code, w.Body.String())
	}
	var views []auditView
	decode(t, w, &views)
	if len(views) != 1 {
		t.Fatalf("today entries = %d, want only the admin's own", len(views))
	}
	if views[0].UserID != f.admin.ID {
		t.Fatalf("entry user = %s, want admin", views[0].UserID.Hex())
	}
	if views[0].Timestamp.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
		t.Fatal("entry is not from today")
	}
}

func TestApprovalListAdminOnly(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	ListApprovals(w, request(t, f.manager, "GET", "/api/approvals", nil, nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("manager list approvals status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	ListApprovals(w, request(t, f.admin, "GET", "/api/approvals", nil, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("admin list approvals status = %d", w.Code)
	}
}
