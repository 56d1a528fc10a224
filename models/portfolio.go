// models/portfolio.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Portfolio struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Entity      string               `bson:"entity" json:"entity"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Owners      []primitive.ObjectID `bson:"owners" json:"owners"`
	Managers    []primitive.ObjectID `bson:"managers" json:"managers"`
	Viewers     []primitive.ObjectID `bson:"viewers" json:"viewers"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (p *Portfolio) HasOwner(id primitive.ObjectID) bool   { return contains(p.Owners, id) }
func (p *Portfolio) HasManager(id primitive.ObjectID) bool { return contains(p.Managers, id) }
func (p *Portfolio) HasViewer(id primitive.ObjectID) bool  { return contains(p.Viewers, id) }
