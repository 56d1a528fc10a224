// store/memory.go
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
)

// Memory is a thread-safe in-process Store. It backs the test suite and
// mirrors the Mongo implementation's semantics, including ErrNotFound
// and newest-first listings.
type Memory struct {
	mu         sync.RWMutex
	users      map[primitive.ObjectID]models.User
	portfolios map[primitive.ObjectID]models.Portfolio
	properties map[primitive.ObjectID]models.Property
	fields     map[primitive.ObjectID]models.DynamicField
	documents  map[primitive.ObjectID]models.Document
	notes      map[primitive.ObjectID]models.Note
	approvals  map[primitive.ObjectID]models.ApprovalRequest
	audits     []models.AuditLog
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[primitive.ObjectID]models.User{},
		portfolios: map[primitive.ObjectID]models.Portfolio{},
		properties: map[primitive.ObjectID]models.Property{},
		fields:     map[primitive.ObjectID]models.DynamicField{},
		documents:  map[primitive.ObjectID]models.Document{},
		notes:      map[primitive.ObjectID]models.Note{},
		approvals:  map[primitive.ObjectID]models.ApprovalRequest{},
	}
}

func (m *Memory) Users() UserStore           { return memUsers{m} }
func (m *Memory) Portfolios() PortfolioStore { return memPortfolios{m} }
func (m *Memory) Properties() PropertyStore  { return memProperties{m} }
func (m *Memory) Fields() FieldStore         { return memFields{m} }
func (m *Memory) Documents() DocumentStore   { return memDocuments{m} }
func (m *Memory) Notes() NoteStore           { return memNotes{m} }
func (m *Memory) Approvals() ApprovalStore   { return memApprovals{m} }
func (m *Memory) Audits() AuditStore         { return memAudits{m} }

func copyIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func copyPortfolio(p models.Portfolio) models.Portfolio {
	p.Owners = copyIDs(p.Owners)
	p.Managers = copyIDs(p.Managers)
	p.Viewers = copyIDs(p.Viewers)
	return p
}

// ---- users ----

type memUsers struct{ m *Memory }

func (s memUsers) Insert(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) List(_ context.Context) ([]models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	users := make([]models.User, 0, len(s.m.users))
	for _, u := range s.m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s memUsers) Update(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.users, id)
	return nil
}

func (s memUsers) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := map[primitive.ObjectID]models.UserSummary{}
	for _, id := range ids {
		if u, ok := s.m.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

// ---- portfolios ----

type memPortfolios struct{ m *Memory }

func (s memPortfolios) Insert(_ context.Context, p *models.Portfolio) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.m.portfolios[p.ID] = copyPortfolio(*p)
	return nil
}

func (s memPortfolios) FindByID(_ context.Context, id primitive.ObjectID) (*models.Portfolio, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.portfolios[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = copyPortfolio(p)
	return &p, nil
}

func (s memPortfolios) list(match func(models.Portfolio) bool) []models.Portfolio {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	portfolios := []models.Portfolio{}
	for _, p := range s.m.portfolios {
		if match(p) {
			portfolios = append(portfolios, copyPortfolio(p))
		}
	}
	sort.Slice(portfolios, func(i, j int) bool {
		return portfolios[i].CreatedAt.After(portfolios[j].CreatedAt)
	})
	return portfolios
}

func (s memPortfolios) ListAll(_ context.Context) ([]models.Portfolio, error) {
	return s.list(func(models.Portfolio) bool { return true }), nil
}

func (s memPortfolios) ListForMember(_ context.Context, userID primitive.ObjectID) ([]models.Portfolio, error) {
	return s.list(func(p models.Portfolio) bool {
		return p.HasOwner(userID) || p.HasManager(userID) || p.HasViewer(userID)
	}), nil
}

func (s memPortfolios) Update(_ context.Context, p *models.Portfolio) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.portfolios[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.m.portfolios[p.ID] = copyPortfolio(*p)
	return nil
}

func (s memPortfolios) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.portfolios[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.portfolios, id)
	return nil
}

// ---- properties ----

type memProperties struct{ m *Memory }

func (s memProperties) Insert(_ context.Context, p *models.Property) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.m.properties[p.ID] = *p
	return nil
}

func (s memProperties) FindByID(_ context.Context, id primitive.ObjectID) (*models.Property, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s memProperties) list(match func(models.Property) bool) []models.Property {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	properties := []models.Property{}
	for _, p := range s.m.properties {
		if match(p) {
			properties = append(properties, p)
		}
	}
	sort.Slice(properties, func(i, j int) bool {
		return properties[i].CreatedAt.After(properties[j].CreatedAt)
	})
	return properties
}

func (s memProperties) ListByPortfolio(_ context.Context, portfolioID primitive.ObjectID) ([]models.Property, error) {
	return s.list(func(p models.Property) bool { return p.PortfolioID == portfolioID }), nil
}

func (s memProperties) ListPending(_ context.Context) ([]models.Property, error) {
	return s.list(func(p models.Property) bool { return p.Status == models.PropertyStatusPending }), nil
}

func (s memProperties) CountByPortfolio(_ context.Context, portfolioID primitive.ObjectID) (int64, error) {
	return int64(len(s.list(func(p models.Property) bool { return p.PortfolioID == portfolioID }))), nil
}

func (s memProperties) Update(_ context.Context, p *models.Property) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.properties[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.m.properties[p.ID] = *p
	return nil
}

func (s memProperties) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.properties[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.properties, id)
	return nil
}

// ---- fields ----

type memFields struct{ m *Memory }

func (s memFields) Insert(_ context.Context, f *models.DynamicField) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	s.m.fields[f.ID] = *f
	return nil
}

func (s memFields) FindByID(_ context.Context, id primitive.ObjectID) (*models.DynamicField, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	f, ok := s.m.fields[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s memFields) list(match func(models.DynamicField) bool) []models.DynamicField {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	fields := []models.DynamicField{}
	for _, f := range s.m.fields {
		if match(f) {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].CreatedAt.After(fields[j].CreatedAt)
	})
	return fields
}

func (s memFields) ListByProperty(_ context.Context, propertyID primitive.ObjectID) ([]models.DynamicField, error) {
	return s.list(func(f models.DynamicField) bool { return f.PropertyID == propertyID }), nil
}

func (s memFields) ListPending(_ context.Context) ([]models.DynamicField, error) {
	return s.list(func(f models.DynamicField) bool { return f.Status == models.StatusPending }), nil
}

func (s memFields) Update(_ context.Context, f *models.DynamicField) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.fields[f.ID]; !ok {
		return ErrNotFound
	}
	f.UpdatedAt = time.Now().UTC()
	s.m.fields[f.ID] = *f
	return nil
}

func (s memFields) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.fields[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.fields, id)
	return nil
}

func (s memFields) DeleteByProperty(_ context.Context, propertyID primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, f := range s.m.fields {
		if f.PropertyID == propertyID {
			delete(s.m.fields, id)
		}
	}
	return nil
}

// ---- documents ----

type memDocuments struct{ m *Memory }

func (s memDocuments) Insert(_ context.Context, d *models.Document) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	s.m.documents[d.ID] = *d
	return nil
}

func (s memDocuments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Document, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	d, ok := s.m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s memDocuments) list(match func(models.Document) bool) []models.Document {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	docs := []models.Document{}
	for _, d := range s.m.documents {
		if match(d) {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs
}

func (s memDocuments) ListByProperty(_ context.Context, propertyID primitive.ObjectID) ([]models.Document, error) {
	return s.list(func(d models.Document) bool { return d.PropertyID == propertyID }), nil
}

func (s memDocuments) ListPending(_ context.Context) ([]models.Document, error) {
	return s.list(func(d models.Document) bool { return d.Status == models.StatusPending }), nil
}

func (s memDocuments) Update(_ context.Context, d *models.Document) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.documents[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.m.documents[d.ID] = *d
	return nil
}

func (s memDocuments) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.documents, id)
	return nil
}

func (s memDocuments) DeleteByProperty(_ context.Context, propertyID primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, d := range s.m.documents {
		if d.PropertyID == propertyID {
			delete(s.m.documents, id)
		}
	}
	return nil
}

// ---- notes ----

type memNotes struct{ m *Memory }

func (s memNotes) Insert(_ context.Context, n *models.Note) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = time.Now().UTC()
	s.m.notes[n.ID] = *n
	return nil
}

func (s memNotes) FindByID(_ context.Context, id primitive.ObjectID) (*models.Note, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	n, ok := s.m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (s memNotes) ListByProperty(_ context.Context, propertyID primitive.ObjectID) ([]models.Note, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	notes := []models.Note{}
	for _, n := range s.m.notes {
		if n.PropertyID == propertyID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (s memNotes) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.notes, id)
	return nil
}

func (s memNotes) DeleteByProperty(_ context.Context, propertyID primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, n := range s.m.notes {
		if n.PropertyID == propertyID {
			delete(s.m.notes, id)
		}
	}
	return nil
}

// ---- approvals ----

type memApprovals struct{ m *Memory }

func (s memApprovals) Insert(_ context.Context, a *models.ApprovalRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.m.approvals[a.ID] = *a
	return nil
}

func (s memApprovals) FindByID(_ context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	a, ok := s.m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s memApprovals) FindPending(_ context.Context, kind string, refID primitive.ObjectID, action string) (*models.ApprovalRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, a := range s.m.approvals {
		if a.Kind == kind && a.RefID == refID && a.Action == action && a.Status == models.StatusPending {
			a := a
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s memApprovals) List(_ context.Context, status string) ([]models.ApprovalRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	approvals := []models.ApprovalRequest{}
	for _, a := range s.m.approvals {
		if status == "" || a.Status == status {
			approvals = append(approvals, a)
		}
	}
	sort.Slice(approvals, func(i, j int) bool {
		return approvals[i].CreatedAt.After(approvals[j].CreatedAt)
	})
	return approvals, nil
}

func (s memApprovals) Update(_ context.Context, a *models.ApprovalRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.approvals[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	s.m.approvals[a.ID] = *a
	return nil
}

// ---- audit logs ----

type memAudits struct{ m *Memory }

func (s memAudits) Insert(_ context.Context, e *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.m.audits = append(s.m.audits, *e)
	return nil
}

func (s memAudits) List(_ context.Context, f AuditFilter) ([]models.AuditLog, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	logs := []models.AuditLog{}
	for _, e := range s.m.audits {
		if f.Action != "" && !strings.Contains(strings.ToLower(e.Action), strings.ToLower(f.Action)) {
			continue
		}
		if f.TargetType != "" && e.TargetType != f.TargetType {
			continue
		}
		if len(f.UserIDs) > 0 {
			matched := false
			for _, id := range f.UserIDs {
				if e.UserID == id {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
			continue
		}
		logs = append(logs, e)
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	limit := int(f.Limit)
	if limit <= 0 {
		limit = 100
	}
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
