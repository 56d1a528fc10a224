// models/field.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Approval status shared by fields and documents.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

const (
	CategoryValue   = "value"
	CategoryRevenue = "revenue"
	CategoryExpense = "expense"
	CategoryAsset   = "asset"
)

const (
	FieldTypeNumber   = "number"
	FieldTypeText     = "text"
	FieldTypeCurrency = "currency"
	FieldTypeDate     = "date"
)

type DynamicField struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PortfolioID primitive.ObjectID `bson:"portfolioId" json:"portfolioId"`
	PropertyID  primitive.ObjectID `bson:"propertyId" json:"propertyId"`
	Name        string             `bson:"name" json:"name"`
	Category    string             `bson:"category" json:"category"`
	Type        string             `bson:"type" json:"type"`
	Frequency   string             `bson:"frequency" json:"frequency"` // one-time, weekly, monthly, quarterly, annually
	Currency    string             `bson:"currency,omitempty" json:"currency,omitempty"`
	Value       any                `bson:"value" json:"value"`
	Status      string             `bson:"status" json:"status"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	ApprovedBy  primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FieldUpdate is a partial change set for a dynamic field.
type FieldUpdate struct {
	Name      *string `bson:"name,omitempty" json:"name,omitempty"`
	Category  *string `bson:"category,omitempty" json:"category,omitempty"`
	Type      *string `bson:"type,omitempty" json:"type,omitempty"`
	Frequency *string `bson:"frequency,omitempty" json:"frequency,omitempty"`
	Currency  *string `bson:"currency,omitempty" json:"currency,omitempty"`
	Value     any     `bson:"value,omitempty" json:"value,omitempty"`
}

func (u *FieldUpdate) ApplyTo(f *DynamicField) {
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Category != nil {
		f.Category = *u.Category
	}
	if u.Type != nil {
		f.Type = *u.Type
	}
	if u.Frequency != nil {
		f.Frequency = *u.Frequency
	}
	if u.Currency != nil {
		f.Currency = *u.Currency
	}
	if u.Value != nil {
		f.Value = u.Value
	}
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryValue, CategoryRevenue, CategoryExpense, CategoryAsset:
		return true
	}
	return false
}

func ValidFieldType(t string) bool {
	switch t {
	case FieldTypeNumber, FieldTypeText, FieldTypeCurrency, FieldTypeDate:
		return true
	}
	return false
}
