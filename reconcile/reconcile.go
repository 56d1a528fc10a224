// Package reconcile periodically scans for pending entities whose
// ApprovalRequest never made it in (the staging write is two-phase and
// not atomic). Orphans are surfaced through the audit trail rather than
// repaired automatically.
package reconcile

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
)

type Scanner struct {
	store store.Store
	audit *audit.Recorder
	cron  *cron.Cron
}

func NewScanner(st store.Store, rec *audit.Recorder) *Scanner {
	return &Scanner{store: st, audit: rec, cron: cron.New()}
}

// Start schedules the scan. The spec string follows robfig/cron syntax
// ("@hourly", "*/30 * * * *", ...).
func (s *Scanner) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Scan(ctx); err != nil {
			log.Printf("Orphan scan failed: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scanner) Stop() {
	s.cron.Stop()
}

// Scan walks every pending field, document, and property and reports
// the ones with no matching pending creation request.
func (s *Scanner) Scan(ctx context.Context) error {
	found := 0

	fields, err := s.store.Fields().ListPending(ctx)
	if err != nil {
		return err
	}
	for _, f := range fields {
		orphan, err := s.isOrphan(ctx, models.ApprovalKindField, f.ID)
		if err != nil {
			return err
		}
		if orphan {
			s.report(ctx, models.TargetField, f.ID, f.CreatedBy)
			found++
		}
	}

	docs, err := s.store.Documents().ListPending(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		orphan, err := s.isOrphan(ctx, models.ApprovalKindDocument, d.ID)
		if err != nil {
			return err
		}
		if orphan {
			s.report(ctx, models.TargetDocument, d.ID, d.UploadedBy)
			found++
		}
	}

	properties, err := s.store.Properties().ListPending(ctx)
	if err != nil {
		return err
	}
	for _, p := range properties {
		orphan, err := s.isOrphan(ctx, models.ApprovalKindProperty, p.ID)
		if err != nil {
			return err
		}
		if orphan {
			s.report(ctx, models.TargetProperty, p.ID, p.CreatedBy)
			found++
		}
	}

	if found > 0 {
		log.Printf("Orphan scan found %d pending entities without approval requests", found)
	}
	return nil
}

func (s *Scanner) isOrphan(ctx context.Context, kind string, refID primitive.ObjectID) (bool, error) {
	_, err := s.store.Approvals().FindPending(ctx, kind, refID, models.ActionCreate)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func (s *Scanner) report(ctx context.Context, targetType string, targetID, owner primitive.ObjectID) {
	s.audit.Record(ctx, audit.Entry{
		UserID:     owner,
		Action:     "Detected orphaned pending " + targetType,
		TargetType: targetType,
		TargetID:   targetID,
	})
}
