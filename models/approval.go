// models/approval.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ApprovalKindField    = "field"
	ApprovalKindDocument = "document"
	ApprovalKindProperty = "property"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ApprovalRequest is a staged mutation awaiting an admin decision. The
// payload holds exactly one kind-specific change set matching Kind.
type ApprovalRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind        string             `bson:"type" json:"type"`
	RefID       primitive.ObjectID `bson:"refId" json:"refId"`
	PropertyID  primitive.ObjectID `bson:"propertyId" json:"propertyId"`
	PortfolioID primitive.ObjectID `bson:"portfolioId" json:"portfolioId"`
	Action      string             `bson:"action" json:"action"`
	SubmittedBy primitive.ObjectID `bson:"submittedBy" json:"submittedBy"`
	ReviewedBy  primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	Status      string             `bson:"status" json:"status"`
	Comments    string             `bson:"comments,omitempty" json:"comments,omitempty"`
	Payload     ApprovalPayload    `bson:"payload" json:"payload"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ApprovalPayload is the tagged per-kind change carried by a request.
type ApprovalPayload struct {
	Field    *FieldChange    `bson:"field,omitempty" json:"field,omitempty"`
	Document *DocumentChange `bson:"document,omitempty" json:"document,omitempty"`
	Property *PropertyChange `bson:"property,omitempty" json:"property,omitempty"`
}

// FieldChange carries the staged state for a field request. Created is
// set for create actions (snapshot of the provisional entity), Proposed
// for updates, Original for updates and deletes.
type FieldChange struct {
	Original *DynamicField `bson:"original,omitempty" json:"original,omitempty"`
	Created  *DynamicField `bson:"created,omitempty" json:"created,omitempty"`
	Proposed *FieldUpdate  `bson:"proposed,omitempty" json:"proposed,omitempty"`
}

type DocumentChange struct {
	Original *Document `bson:"original,omitempty" json:"original,omitempty"`
	Created  *Document `bson:"created,omitempty" json:"created,omitempty"`
}

type PropertyChange struct {
	Original *Property       `bson:"original,omitempty" json:"original,omitempty"`
	Created  *Property       `bson:"created,omitempty" json:"created,omitempty"`
	Proposed *PropertyUpdate `bson:"proposed,omitempty" json:"proposed,omitempty"`
}

// Before returns the pre-change snapshot for audit purposes.
func (p ApprovalPayload) Before() any {
	switch {
	case p.Field != nil && p.Field.Original != nil:
		return p.Field.Original
	case p.Document != nil && p.Document.Original != nil:
		return p.Document.Original
	case p.Property != nil && p.Property.Original != nil:
		return p.Property.Original
	}
	return nil
}

// After returns the staged post-change state for audit purposes.
func (p ApprovalPayload) After() any {
	switch {
	case p.Field != nil && p.Field.Created != nil:
		return p.Field.Created
	case p.Field != nil && p.Field.Proposed != nil:
		return p.Field.Proposed
	case p.Document != nil && p.Document.Created != nil:
		return p.Document.Created
	case p.Property != nil && p.Property.Created != nil:
		return p.Property.Created
	case p.Property != nil && p.Property.Proposed != nil:
		return p.Property.Proposed
	}
	return nil
}
