// Package store defines the entity-store contract the rest of the
// application is written against. The Mongo implementation backs
// production; the in-memory implementation backs tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type Store interface {
	Users() UserStore
	Portfolios() PortfolioStore
	Properties() PropertyStore
	Fields() FieldStore
	Documents() DocumentStore
	Notes() NoteStore
	Approvals() ApprovalStore
	Audits() AuditStore
}

type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// Summaries resolves ids into lightweight display summaries.
	// Unknown ids are simply absent from the result.
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
}

type PortfolioStore interface {
	Insert(ctx context.Context, p *models.Portfolio) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Portfolio, error)
	ListAll(ctx context.Context) ([]models.Portfolio, error)
	// ListForMember returns portfolios where the user appears in any
	// membership bucket.
	ListForMember(ctx context.Context, userID primitive.ObjectID) ([]models.Portfolio, error)
	Update(ctx context.Context, p *models.Portfolio) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type PropertyStore interface {
	Insert(ctx context.Context, p *models.Property) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Property, error)
	ListByPortfolio(ctx context.Context, portfolioID primitive.ObjectID) ([]models.Property, error)
	ListPending(ctx context.Context) ([]models.Property, error)
	CountByPortfolio(ctx context.Context, portfolioID primitive.ObjectID) (int64, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type FieldStore interface {
	Insert(ctx context.Context, f *models.DynamicField) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.DynamicField, error)
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.DynamicField, error)
	ListPending(ctx context.Context) ([]models.DynamicField, error)
	Update(ctx context.Context, f *models.DynamicField) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error
}

type DocumentStore interface {
	Insert(ctx context.Context, d *models.Document) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Document, error)
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Document, error)
	ListPending(ctx context.Context) ([]models.Document, error)
	Update(ctx context.Context, d *models.Document) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error
}

type NoteStore interface {
	Insert(ctx context.Context, n *models.Note) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Note, error)
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Note, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error
}

type ApprovalStore interface {
	Insert(ctx context.Context, a *models.ApprovalRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error)
	// FindPending returns the pending request for (kind, refID, action),
	// or ErrNotFound when none exists.
	FindPending(ctx context.Context, kind string, refID primitive.ObjectID, action string) (*models.ApprovalRequest, error)
	List(ctx context.Context, status string) ([]models.ApprovalRequest, error)
	Update(ctx context.Context, a *models.ApprovalRequest) error
}

// AuditFilter narrows an audit-log listing. Zero values mean "no
// filter". Action matches as a case-insensitive substring.
type AuditFilter struct {
	Action     string
	TargetType string
	UserIDs    []primitive.ObjectID
	From       time.Time
	To         time.Time
	Limit      int64
}

type AuditStore interface {
	Insert(ctx context.Context, e *models.AuditLog) error
	List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}
