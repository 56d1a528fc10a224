// handlers/field_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type fieldRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	Frequency string `json:"frequency"`
	Currency  string `json:"currency"`
	Value     any    `json:"value"`
}

// CreateField adds a financial field to a property, staged when the
// actor is a deferring manager.
func CreateField(w http.ResponseWriter, r *http.Request) {
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

	var req fieldRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Type == "" || req.Value == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Field name, type and value are required")
		return
	}
	if !models.ValidFieldType(req.Type) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field type")
		return
	}
	if req.Category == "" {
		req.Category = models.CategoryValue
	}
	if !models.ValidCategory(req.Category) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field category")
		return
	}
	if req.Currency == "" {
		req.Currency = "AUD"
	}
	if req.Frequency == "" {
		req.Frequency = "one-time"
	}

	deferred := approval.ShouldDefer(caps)
	status := models.StatusApproved
	if deferred {
		status = models.StatusPending
	}

	now := time.Now().UTC()
	field := &models.DynamicField{
		PortfolioID: portfolio.ID,
		PropertyID:  property.ID,
		Name:        req.Name,
		Category:    req.Category,
		Type:        req.Type,
		Frequency:   req.Frequency,
		Currency:    req.Currency,
		Value:       req.Value,
		Status:      status,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !deferred {
		field.ApprovedBy = actor.ID
	}
	if err := appStore.Fields().Insert(r.Context(), field); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create field")
		return
	}

	if !deferred {
		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Created field",
			TargetType: models.TargetField,
			TargetID:   field.ID,
			After:      field,
		}.FromRequest(r))
		utils.RespondWithJSON(w, http.StatusCreated, field)
		return
	}

	request, err := engine.Stage(r.Context(), approval.StageInput{
		Kind:        models.ApprovalKindField,
		Action:      models.ActionCreate,
		RefID:       field.ID,
		PropertyID:  property.ID,
		PortfolioID: portfolio.ID,
		SubmittedBy: actor.ID,
		Payload:     models.ApprovalPayload{Field: &models.FieldChange{Created: field}},
		Compensate: func(ctx context.Context) error {
			return appStore.Fields().Delete(ctx, field.ID)
		},
	})
	if err != nil {
		respondStageError(w, err)
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Submitted field create for approval",
		TargetType: models.TargetField,
		TargetID:   field.ID,
		After:      field,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":  "Field creation pending approval",
		"field":    field,
		"approval": request,
	})
}

// UpdateField applies or stages a partial field update.
func UpdateField(w http.ResponseWriter, r *http.Request) {
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

	fieldID, ok := pathID(r, "fieldId")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field ID")
		return
	}
	field, err := appStore.Fields().FindByID(r.Context(), fieldID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Field not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch field")
		return
	}
	if field.PortfolioID != portfolio.ID {
		utils.RespondWithError(w, http.StatusNotFound, "Field not found")
		return
	}

	var req models.FieldUpdate
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Category != nil && !models.ValidCategory(*req.Category) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field category")
		return
	}
	if req.Type != nil && !models.ValidFieldType(*req.Type) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field type")
		return
	}

	if approval.ShouldDefer(caps) {
		original := *field
		request, err := engine.Stage(r.Context(), approval.StageInput{
			Kind:        models.ApprovalKindField,
			Action:      models.ActionUpdate,
			RefID:       field.ID,
			PropertyID:  field.PropertyID,
			PortfolioID: portfolio.ID,
			SubmittedBy: actor.ID,
			Payload: models.ApprovalPayload{Field: &models.FieldChange{
				Original: &original,
				Proposed: &req,
			}},
		})
		if err != nil {
			respondStageError(w, err)
			return
		}

		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Submitted field update for approval",
			TargetType: models.TargetField,
			TargetID:   field.ID,
			Before:     &original,
			After:      &req,
		}.FromRequest(r))

		utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":  "Field update pending approval",
			"approval": request,
		})
		return
	}

	before := *field
	req.ApplyTo(field)
	field.Status = models.StatusApproved
	field.ApprovedBy = actor.ID
	field.UpdatedAt = time.Now().UTC()

	if err := appStore.Fields().Update(r.Context(), field); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update field")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Updated field",
		TargetType: models.TargetField,
		TargetID:   field.ID,
		Before:     &before,
		After:      field,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, field)
}

// DeleteField removes or stages removal of a field.
func DeleteField(w http.ResponseWriter, r *http.Request) {
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

	fieldID, ok := pathID(r, "fieldId")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid field ID")
		return
	}
	field, err := appStore.Fields().FindByID(r.Context(), fieldID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Field not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch field")
		return
	}
	if field.PortfolioID != portfolio.ID {
		utils.RespondWithError(w, http.StatusNotFound, "Field not found")
		return
	}

	if approval.ShouldDefer(caps) {
		original := *field
		request, err := engine.Stage(r.Context(), approval.StageInput{
			Kind:        models.ApprovalKindField,
			Action:      models.ActionDelete,
			RefID:       field.ID,
			PropertyID:  field.PropertyID,
			PortfolioID: portfolio.ID,
			SubmittedBy: actor.ID,
			Payload:     models.ApprovalPayload{Field: &models.FieldChange{Original: &original}},
		})
		if err != nil {
			respondStageError(w, err)
			return
		}

		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Submitted field delete for approval",
			TargetType: models.TargetField,
			TargetID:   field.ID,
			Before:     &original,
		}.FromRequest(r))

		utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":  "Field deletion pending approval",
			"approval": request,
		})
		return
	}

	if err := appStore.Fields().Delete(r.Context(), field.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete field")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted field",
		TargetType: models.TargetField,
		TargetID:   field.ID,
		Before:     field,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Field deleted"})
}
