// Package approval decides whether a mutation applies directly or is
// staged for admin review, and resolves staged requests.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/access"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/blob"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
)

var (
	// ErrAlreadyPending is returned when a pending request already
	// exists for the same (type, refId, action).
	ErrAlreadyPending = errors.New("a pending approval request already exists for this change")
	// ErrAlreadyResolved is returned when a request is resolved twice.
	ErrAlreadyResolved = errors.New("this approval has already been processed")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ShouldDefer reports whether a mutation by an actor with the given
// capabilities must be staged. Admins and owners always apply directly.
func ShouldDefer(caps access.Capabilities) bool {
	return caps.IsManager && !caps.IsOwner && !caps.IsAdmin
}

type Engine struct {
	store store.Store
	blobs blob.Storage
	audit *audit.Recorder
}

func NewEngine(st store.Store, blobs blob.Storage, rec *audit.Recorder) *Engine {
	return &Engine{store: st, blobs: blobs, audit: rec}
}

// StageInput describes a mutation to defer.
type StageInput struct {
	Kind        string
	Action      string
	RefID       primitive.ObjectID
	PropertyID  primitive.ObjectID
	PortfolioID primitive.ObjectID
	SubmittedBy primitive.ObjectID
	Payload     models.ApprovalPayload

	// Compensate undoes an already-created provisional entity when the
	// request insert fails, so no orphaned pending record survives the
	// two-phase write.
	Compensate func(context.Context) error
}

// Stage records a pending ApprovalRequest for the mutation. The caller
// surfaces the returned request as deferred acceptance, not success.
func (e *Engine) Stage(ctx context.Context, in StageInput) (*models.ApprovalRequest, error) {
	_, err := e.store.Approvals().FindPending(ctx, in.Kind, in.RefID, in.Action)
	if err == nil {
		return nil, ErrAlreadyPending
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	req := &models.ApprovalRequest{
		Kind:        in.Kind,
		RefID:       in.RefID,
		PropertyID:  in.PropertyID,
		PortfolioID: in.PortfolioID,
		Action:      in.Action,
		SubmittedBy: in.SubmittedBy,
		Status:      models.StatusPending,
		Payload:     in.Payload,
	}
	if err := e.store.Approvals().Insert(ctx, req); err != nil {
		if in.Compensate != nil {
			if cerr := in.Compensate(ctx); cerr != nil {
				log.Printf("Compensation after failed approval insert also failed (%s %s %s): %v",
					in.Kind, in.Action, in.RefID.Hex(), cerr)
			}
		}
		return nil, err
	}
	return req, nil
}

// Resolve applies an admin decision to a pending request exactly once.
func (e *Engine) Resolve(ctx context.Context, id primitive.ObjectID, decision string, reviewer *models.User, comments string) (*models.ApprovalRequest, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, ErrInvalidDecision
	}

	req, err := e.store.Approvals().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, ErrAlreadyResolved
	}

	if decision == DecisionApprove {
		req.Status = models.StatusApproved
	} else {
		req.Status = models.StatusRejected
	}
	req.ReviewedBy = reviewer.ID
	req.Comments = comments
	if err := e.store.Approvals().Update(ctx, req); err != nil {
		return nil, err
	}

	if decision == DecisionApprove {
		if err := e.apply(ctx, req, reviewer); err != nil {
			return nil, err
		}
	} else {
		if err := e.discard(ctx, req, reviewer); err != nil {
			return nil, err
		}
	}

	verb := "Approved"
	if decision == DecisionReject {
		verb = "Rejected"
	}
	e.audit.Record(ctx, audit.Entry{
		UserID:     reviewer.ID,
		Action:     fmt.Sprintf("%s %s %s", verb, req.Kind, req.Action),
		TargetType: req.Kind,
		TargetID:   req.RefID,
		Before:     req.Payload.Before(),
		After:      req.Payload.After(),
	})

	return req, nil
}

// apply carries an approved request's staged change into the live
// entity. A missing target is tolerated: the decision stands and the
// record simply has nothing left to touch.
func (e *Engine) apply(ctx context.Context, req *models.ApprovalRequest, reviewer *models.User) error {
	switch req.Kind {
	case models.ApprovalKindField:
		field, err := e.store.Fields().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch req.Action {
		case models.ActionCreate:
			field.Status = models.StatusApproved
			field.ApprovedBy = reviewer.ID
			return e.store.Fields().Update(ctx, field)
		case models.ActionUpdate:
			if req.Payload.Field != nil && req.Payload.Field.Proposed != nil {
				req.Payload.Field.Proposed.ApplyTo(field)
			}
			field.Status = models.StatusApproved
			field.ApprovedBy = reviewer.ID
			return e.store.Fields().Update(ctx, field)
		case models.ActionDelete:
			return e.store.Fields().Delete(ctx, req.RefID)
		}

	case models.ApprovalKindDocument:
		doc, err := e.store.Documents().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch req.Action {
		case models.ActionCreate:
			doc.Status = models.StatusApproved
			doc.ApprovedBy = reviewer.ID
			return e.store.Documents().Update(ctx, doc)
		case models.ActionDelete:
			e.releaseBlob(ctx, doc.URL)
			return e.store.Documents().Delete(ctx, req.RefID)
		}

	case models.ApprovalKindProperty:
		property, err := e.store.Properties().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch req.Action {
		case models.ActionCreate:
			if req.Payload.Property != nil && req.Payload.Property.Proposed != nil {
				req.Payload.Property.Proposed.ApplyTo(property)
			}
			if property.Status == models.PropertyStatusPending {
				property.Status = models.PropertyStatusActive
			}
			property.UpdatedBy = reviewer.ID
			if err := e.store.Properties().Update(ctx, property); err != nil {
				return err
			}
			return e.approveSeededFields(ctx, property.ID, reviewer.ID)
		case models.ActionUpdate:
			if req.Payload.Property != nil && req.Payload.Property.Proposed != nil {
				req.Payload.Property.Proposed.ApplyTo(property)
			}
			property.UpdatedBy = reviewer.ID
			return e.store.Properties().Update(ctx, property)
		case models.ActionDelete:
			return e.cascadeDeleteProperty(ctx, property)
		}
	}
	return nil
}

// discard handles rejection. Staged creations leave a rejected record
// behind (documents additionally release their uploaded file); rejected
// property creations are removed entirely along with their seeded
// fields. Update and delete rejections touch nothing.
func (e *Engine) discard(ctx context.Context, req *models.ApprovalRequest, reviewer *models.User) error {
	if req.Action != models.ActionCreate {
		return nil
	}

	switch req.Kind {
	case models.ApprovalKindField:
		field, err := e.store.Fields().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		field.Status = models.StatusRejected
		return e.store.Fields().Update(ctx, field)

	case models.ApprovalKindDocument:
		doc, err := e.store.Documents().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		e.releaseBlob(ctx, doc.URL)
		doc.Status = models.StatusRejected
		return e.store.Documents().Update(ctx, doc)

	case models.ApprovalKindProperty:
		property, err := e.store.Properties().FindByID(ctx, req.RefID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.cascadeDeleteProperty(ctx, property)
	}
	return nil
}

// approveSeededFields promotes the default fields created alongside a
// provisional property once that property's creation is approved.
func (e *Engine) approveSeededFields(ctx context.Context, propertyID, reviewerID primitive.ObjectID) error {
	fields, err := e.store.Fields().ListByProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	for i := range fields {
		if fields[i].Status != models.StatusPending {
			continue
		}
		fields[i].Status = models.StatusApproved
		fields[i].ApprovedBy = reviewerID
		if err := e.store.Fields().Update(ctx, &fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// cascadeDeleteProperty removes a property with its fields, documents,
// notes, and externally stored files.
func (e *Engine) cascadeDeleteProperty(ctx context.Context, property *models.Property) error {
	docs, err := e.store.Documents().ListByProperty(ctx, property.ID)
	if err != nil {
		return err
	}
	urls := []string{}
	for _, d := range docs {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	if property.ImageURL != "" {
		urls = append(urls, property.ImageURL)
	}
	if len(urls) > 0 {
		if _, err := e.blobs.DeleteMany(ctx, urls); err != nil {
			log.Printf("Blob cleanup failed for property %s: %v", property.ID.Hex(), err)
		}
	}

	if err := e.store.Fields().DeleteByProperty(ctx, property.ID); err != nil {
		return err
	}
	if err := e.store.Documents().DeleteByProperty(ctx, property.ID); err != nil {
		return err
	}
	if err := e.store.Notes().DeleteByProperty(ctx, property.ID); err != nil {
		return err
	}
	return e.store.Properties().Delete(ctx, property.ID)
}

func (e *Engine) releaseBlob(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := e.blobs.Delete(ctx, url); err != nil {
		log.Printf("Blob delete failed for %s: %v", url, err)
	}
}
