// handlers/portfolio_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/access"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

// loadPortfolio fetches the portfolio and evaluates the actor's
// capabilities on it, writing the error response itself on failure.
func loadPortfolio(w http.ResponseWriter, r *http.Request, actor *models.User, idParam string) (*models.Portfolio, access.Capabilities, bool) {
	portfolioID, ok := pathID(r, idParam)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return nil, access.Capabilities{}, false
	}
	portfolio, err := appStore.Portfolios().FindByID(r.Context(), portfolioID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Portfolio not found")
		return nil, access.Capabilities{}, false
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch portfolio")
		return nil, access.Capabilities{}, false
	}
	caps := access.Evaluate(actor, portfolio)
	if !caps.HasMembership() {
		utils.RespondWithError(w, http.StatusForbidden, "You do not have access to this portfolio")
		return nil, access.Capabilities{}, false
	}
	return portfolio, caps, true
}

// ListPortfolios returns the portfolios visible to the actor: all of
// them for admins, membership only for everyone else.
func ListPortfolios(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}

	var (
		portfolios []models.Portfolio
		err        error
	)
	if actor.Role == models.RoleAdmin {
		portfolios, err = appStore.Portfolios().ListAll(r.Context())
	} else {
		portfolios, err = appStore.Portfolios().ListForMember(r.Context(), actor.ID)
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch portfolios")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, portfolios)
}

type portfolioRequest struct {
	Name        string `json:"name"`
	Entity      string `json:"entity"`
	Description string `json:"description"`
}

// CreatePortfolio creates a portfolio. Admin only; the creator joins
// the owners bucket.
func CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req portfolioRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Entity = strings.TrimSpace(req.Entity)
	if req.Name == "" || req.Entity == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Name and entity are required")
		return
	}

	now := time.Now().UTC()
	portfolio := &models.Portfolio{
		Name:        req.Name,
		Entity:      req.Entity,
		Description: req.Description,
		Owners:      []primitive.ObjectID{actor.ID},
		Managers:    []primitive.ObjectID{},
		Viewers:     []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := appStore.Portfolios().Insert(r.Context(), portfolio); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create portfolio")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Created portfolio",
		TargetType: models.TargetPortfolio,
		TargetID:   portfolio.ID,
		After:      portfolio,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusCreated, portfolio)
}

// GetPortfolio returns a single portfolio with member summaries.
func GetPortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, _, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}

	ids := append(append(append(portfolio.Owners[:0:0], portfolio.Owners...), portfolio.Managers...), portfolio.Viewers...)
	summaries := userSummaries(r, ids...)
	members := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := summaries[id]; ok {
			members = append(members, s)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": portfolio,
		"members":   members,
	})
}

// UpdatePortfolio edits name/entity/description. Admin or owner.
func UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}
	if !caps.IsAdmin && !caps.IsOwner {
		utils.RespondWithError(w, http.StatusForbidden, "Only admins or owners can edit a portfolio")
		return
	}

	var req portfolioRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	before := *portfolio
	if strings.TrimSpace(req.Name) != "" {
		portfolio.Name = strings.TrimSpace(req.Name)
	}
	if strings.TrimSpace(req.Entity) != "" {
		portfolio.Entity = strings.TrimSpace(req.Entity)
	}
	if req.Description != "" {
		portfolio.Description = req.Description
	}
	portfolio.UpdatedAt = time.Now().UTC()

	if err := appStore.Portfolios().Update(r.Context(), portfolio); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update portfolio")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Updated portfolio",
		TargetType: models.TargetPortfolio,
		TargetID:   portfolio.ID,
		Before:     before,
		After:      portfolio,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, portfolio)
}

// DeletePortfolio removes an empty portfolio. Admin only; refused while
// any property still belongs to it.
func DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}
	portfolio, _, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}

	count, err := appStore.Properties().CountByPortfolio(r.Context(), portfolio.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to check portfolio properties")
		return
	}
	if count > 0 {
		utils.RespondWithError(w, http.StatusConflict, "Portfolio still contains properties")
		return
	}

	if err := appStore.Portfolios().Delete(r.Context(), portfolio.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete portfolio")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted portfolio",
		TargetType: models.TargetPortfolio,
		TargetID:   portfolio.ID,
		Before:     portfolio,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Portfolio deleted"})
}

type assignMemberRequest struct {
	UserID string `json:"userId"`
}

// AssignMember places a user into the membership bucket matching their
// global role. Admin or owner.
func AssignMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}
	if !caps.IsAdmin && !caps.IsOwner {
		utils.RespondWithError(w, http.StatusForbidden, "Only admins or owners can assign members")
		return
	}

	var req assignMemberRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	member, err := appStore.Users().FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if !access.Assign(portfolio, member.ID, member.Role) {
		utils.RespondWithError(w, http.StatusBadRequest, "User has no assignable role")
		return
	}
	portfolio.UpdatedAt = time.Now().UTC()

	if err := appStore.Portfolios().Update(r.Context(), portfolio); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update portfolio")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Assigned portfolio member",
		TargetType: models.TargetPortfolio,
		TargetID:   portfolio.ID,
		After:      member.Summary(),
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, portfolio)
}
