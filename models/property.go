// models/property.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PropertyStatusActive   = "active"
	PropertyStatusPending  = "pending"
	PropertyStatusSold     = "sold"
	PropertyStatusArchived = "archived"
)

type Property struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PortfolioID  primitive.ObjectID `bson:"portfolioId" json:"portfolioId"`
	Name         string             `bson:"name" json:"name"`
	Address      string             `bson:"address" json:"address"`
	PropertyType string             `bson:"propertyType" json:"propertyType"` // residential, commercial, industrial, land, mixed
	Status       string             `bson:"status" json:"status"`
	ImageURL     string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedBy    primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	UpdatedBy    primitive.ObjectID `bson:"updatedBy" json:"updatedBy"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PropertyUpdate is a partial change set. Nil fields are left untouched
// when the update is applied.
type PropertyUpdate struct {
	Name         *string `bson:"name,omitempty" json:"name,omitempty"`
	Address      *string `bson:"address,omitempty" json:"address,omitempty"`
	PropertyType *string `bson:"propertyType,omitempty" json:"propertyType,omitempty"`
	Status       *string `bson:"status,omitempty" json:"status,omitempty"`
	ImageURL     *string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

func (u *PropertyUpdate) ApplyTo(p *Property) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.PropertyType != nil {
		p.PropertyType = *u.PropertyType
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
}

func ValidPropertyStatus(status string) bool {
	switch status {
	case PropertyStatusActive, PropertyStatusPending, PropertyStatusSold, PropertyStatusArchived:
		return true
	}
	return false
}
