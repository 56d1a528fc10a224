// models/audit_log.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TargetProperty  = "property"
	TargetField     = "field"
	TargetDocument  = "document"
	TargetPortfolio = "portfolio"
	TargetUser      = "user"
)

type AuditChanges struct {
	Before any `bson:"before,omitempty" json:"before,omitempty"`
	After  any `bson:"after,omitempty" json:"after,omitempty"`
}

type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Action     string             `bson:"action" json:"action"` // e.g. "Created property", "Approved field update"
	TargetType string             `bson:"targetType" json:"targetType"`
	TargetID   primitive.ObjectID `bson:"targetId" json:"targetId"`
	Changes    AuditChanges       `bson:"changes,omitempty" json:"changes,omitempty"`
	IPAddress  string             `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent  string             `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}
