// handlers/approval_handler.go
package handlers

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type approvalView struct {
	models.ApprovalRequest
	SubmittedByUser *models.UserSummary `json:"submittedByUser,omitempty"`
	ReviewedByUser  *models.UserSummary `json:"reviewedByUser,omitempty"`
}

func approvalViews(r *http.Request, requests []models.ApprovalRequest) []approvalView {
	ids := make([]primitive.ObjectID, 0, len(requests)*2)
	for _, req := range requests {
		ids = append(ids, req.SubmittedBy, req.ReviewedBy)
	}
	summaries := userSummaries(r, ids...)

	views := make([]approvalView, 0, len(requests))
	for _, req := range requests {
		view := approvalView{ApprovalRequest: req}
		if s, ok := summaries[req.SubmittedBy]; ok {
			sub := s
			view.SubmittedByUser = &sub
		}
		if s, ok := summaries[req.ReviewedBy]; ok {
			rev := s
			view.ReviewedByUser = &rev
		}
		views = append(views, view)
	}
	return views
}

// ListApprovals returns approval requests, optionally filtered by
// status. Admin only.
func ListApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	status := r.URL.Query().Get("status")
	if status == "all" {
		status = ""
	}
	requests, err := appStore.Approvals().List(r.Context(), status)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch approvals")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, approvalViews(r, requests))
}

// GetApproval returns one approval request with actor summaries.
func GetApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	approvalID, ok := pathID(r, "id")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid approval ID")
		return
	}
	request, err := appStore.Approvals().FindByID(r.Context(), approvalID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Approval not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch approval")
		return
	}

	views := approvalViews(r, []models.ApprovalRequest{*request})
	utils.RespondWithJSON(w, http.StatusOK, views[0])
}

type decideRequest struct {
	ApprovalID string `json:"approvalId"`
	Decision   string `json:"decision"`
	Comments   string `json:"comments"`
}

// Decide applies an admin decision to a pending approval request.
func Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req decideRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	approvalID, err := primitive.ObjectIDFromHex(req.ApprovalID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid approval ID")
		return
	}

	resolved, err := engine.Resolve(r.Context(), approvalID, req.Decision, actor, req.Comments)
	switch {
	case errors.Is(err, approval.ErrInvalidDecision):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Approval not found")
		return
	case errors.Is(err, approval.ErrAlreadyResolved):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to resolve approval")
		return
	}

	views := approvalViews(r, []models.ApprovalRequest{*resolved})
	utils.RespondWithJSON(w, http.StatusOK, views[0])
}
