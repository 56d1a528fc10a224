// Package audit appends entries to the audit trail. Writes are
// best-effort: a failed insert is logged and swallowed so it can never
// fail the operation that produced it.
package audit

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
)

// Broadcaster mirrors recorded entries to live listeners.
type Broadcaster interface {
	BroadcastAudit(entry *models.AuditLog)
}

type Recorder struct {
	audits store.AuditStore
	feed   Broadcaster // optional
}

func NewRecorder(audits store.AuditStore, feed Broadcaster) *Recorder {
	return &Recorder{audits: audits, feed: feed}
}

// Entry describes one state-changing action.
type Entry struct {
	UserID     primitive.ObjectID
	Action     string
	TargetType string
	TargetID   primitive.ObjectID
	Before     any
	After      any
	IPAddress  string
	UserAgent  string
}

// Record appends the entry. It never returns an error.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	entry := &models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Changes:    models.AuditChanges{Before: e.Before, After: e.After},
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Timestamp:  time.Now().UTC(),
	}
	if err := r.audits.Insert(ctx, entry); err != nil {
		log.Printf("Failed to create audit log: %v", err)
		return
	}
	if r.feed != nil {
		r.feed.BroadcastAudit(entry)
	}
}

// FromRequest fills the client metadata of an entry.
func (e Entry) FromRequest(req *http.Request) Entry {
	if req != nil {
		e.IPAddress = req.RemoteAddr
		e.UserAgent = req.UserAgent()
	}
	return e
}
