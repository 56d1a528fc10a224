// models/document.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PropertyID  primitive.ObjectID `bson:"propertyId" json:"propertyId"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	URL         string             `bson:"url" json:"url"`
	FileType    string             `bson:"fileType" json:"fileType"`
	FileSize    int64              `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	UploadedBy  primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
	ApprovedBy  primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
