// handlers/document_handler.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type documentView struct {
	models.Document
	UploadedByUser *models.UserSummary `json:"uploadedByUser,omitempty"`
	ApprovedByUser *models.UserSummary `json:"approvedByUser,omitempty"`
}

// ListDocuments lists a property's documents with uploader and approver
// summaries. Non-privileged members see approved documents plus their
// own pending ones.
func ListDocuments(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}
	property, ok := loadProperty(w, r, actor, caps, portfolio)
	if !ok {
		return
	}

	docs, err := appStore.Documents().ListByProperty(r.Context(), property.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch documents")
		return
	}

	privileged := caps.IsAdmin || caps.IsOwner
	visible := []models.Document{}
	ids := []primitive.ObjectID{}
	for _, d := range docs {
		if privileged || d.Status == models.StatusApproved || d.UploadedBy == actor.ID {
			visible = append(visible, d)
			ids = append(ids, d.UploadedBy, d.ApprovedBy)
		}
	}
	summaries := userSummaries(r, ids...)

	views := make([]documentView, 0, len(visible))
	for _, d := range visible {
		view := documentView{Document: d}
		if s, ok := summaries[d.UploadedBy]; ok {
			u := s
			view.UploadedByUser = &u
		}
		if s, ok := summaries[d.ApprovedBy]; ok {
			a := s
			view.ApprovedByUser = &a
		}
		views = append(views, view)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

type documentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
}

// CreateDocument records an already-uploaded file against a property.
// The upload itself happens against the blob store before this call; a
// document without a URL is rejected outright.
func CreateDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}
	if !caps.CanManage {
		utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}
	property, ok := loadProperty(w, r, actor, caps, portfolio)
	if !ok {
		return
	}

	var req documentRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.URL == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Document name and url are required")
		return
	}

	deferred := approval.ShouldDefer(caps)
	status := models.StatusApproved
	if deferred {
		status = models.StatusPending
	}

	now := time.Now().UTC()
	doc := &models.Document{
		PropertyID:  property.ID,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		FileType:    req.FileType,
		FileSize:    req.FileSize,
		UploadedBy:  actor.ID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !deferred {
		doc.ApprovedBy = actor.ID
	}
	if err := appStore.Documents().Insert(r.Context(), doc); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create document")
		return
	}

	if !deferred {
		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Uploaded document",
			TargetType: models.TargetDocument,
			TargetID:   doc.ID,
			After:      doc,
		}.FromRequest(r))
		utils.RespondWithJSON(w, http.StatusCreated, doc)
		return
	}

	request, err := engine.Stage(r.Context(), approval.StageInput{
		Kind:        models.ApprovalKindDocument,
		Action:      models.ActionCreate,
		RefID:       doc.ID,
		PropertyID:  property.ID,
		PortfolioID: portfolio.ID,
		SubmittedBy: actor.ID,
		Payload:     models.ApprovalPayload{Document: &models.DocumentChange{Created: doc}},
		Compensate: func(ctx context.Context) error {
			if err := blobs.Delete(ctx, doc.URL); err != nil {
				log.Printf("CreateDocument: compensation blob delete failed: %v", err)
			}
			return appStore.Documents().Delete(ctx, doc.ID)
		},
	})
	if err != nil {
		respondStageError(w, err)
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Submitted document upload for approval",
		TargetType: models.TargetDocument,
		TargetID:   doc.ID,
		After:      doc,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":  "Document upload pending approval",
		"document": doc,
		"approval": request,
	})
}

// DeleteDocument removes a document and its stored file, or stages the
// removal for approval.
func DeleteDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}
	if !caps.CanManage {
		utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	docID, ok := pathID(r, "docId")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}
	doc, err := appStore.Documents().FindByID(r.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch document")
		return
	}
	property, err := appStore.Properties().FindByID(r.Context(), doc.PropertyID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && property.PortfolioID != portfolio.ID) {
		utils.RespondWithError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch document")
		return
	}

	if approval.ShouldDefer(caps) {
		original := *doc
		request, err := engine.Stage(r.Context(), approval.StageInput{
			Kind:        models.ApprovalKindDocument,
			Action:      models.ActionDelete,
			RefID:       doc.ID,
			PropertyID:  doc.PropertyID,
			PortfolioID: portfolio.ID,
			SubmittedBy: actor.ID,
			Payload:     models.ApprovalPayload{Document: &models.DocumentChange{Original: &original}},
		})
		if err != nil {
			respondStageError(w, err)
			return
		}

		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Submitted document delete for approval",
			TargetType: models.TargetDocument,
			TargetID:   doc.ID,
			Before:     &original,
		}.FromRequest(r))

		utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":  "Document deletion pending approval",
			"approval": request,
		})
		return
	}

	if doc.URL != "" {
		if err := blobs.Delete(r.Context(), doc.URL); err != nil {
			log.Printf("DeleteDocument: blob delete failed: %v", err)
		}
	}
	if err := appStore.Documents().Delete(r.Context(), doc.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted document",
		TargetType: models.TargetDocument,
		TargetID:   doc.ID,
		Before:     doc,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}
