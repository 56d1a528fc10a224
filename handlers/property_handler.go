// handlers/property_handler.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/access"
	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

// loadProperty fetches a property inside an already-authorized
// portfolio, enforcing the pending-visibility rule: a property awaiting
// creation approval is visible only to admins, owners, and its creator.
func loadProperty(w http.ResponseWriter, r *http.Request, actor *models.User, caps access.Capabilities, portfolio *models.Portfolio) (*models.Property, bool) {
	propertyID, ok := pathID(r, "propertyId")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid property ID")
		return nil, false
	}
	property, err := appStore.Properties().FindByID(r.Context(), propertyID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Property not found")
		return nil, false
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch property")
		return nil, false
	}
	if property.PortfolioID != portfolio.ID {
		utils.RespondWithError(w, http.StatusNotFound, "Property not found")
		return nil, false
	}
	if property.Status == models.PropertyStatusPending && !caps.IsAdmin && !caps.IsOwner && property.CreatedBy != actor.ID {
		utils.RespondWithError(w, http.StatusNotFound, "Property not found")
		return nil, false
	}
	return property, true
}

type propertyView struct {
	models.Property
	Fields []models.DynamicField `json:"fields"`
}

// ListProperties lists the portfolio's properties with their fields
// inlined. Non-admins see approved-status properties plus their own
// pending ones, and only approved fields.
func ListProperties(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, caps, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}

	properties, err := appStore.Properties().ListByPortfolio(r.Context(), portfolio.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch properties")
		return
	}

	privileged := caps.IsAdmin || caps.IsOwner
	views := []propertyView{}
	for i := range properties {
		property := properties[i]
		if property.Status == models.PropertyStatusPending && !privileged && property.CreatedBy != actor.ID {
			continue
		}
		fields, err := appStore.Fields().ListByProperty(r.Context(), property.ID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch fields")
			return
		}
		view := propertyView{Property: property, Fields: []models.DynamicField{}}
		for _, f := range fields {
			if privileged || f.Status == models.StatusApproved || f.CreatedBy == actor.ID {
				view.Fields = append(view.Fields, f)
			}
		}
		views = append(views, view)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

// GetProperty returns one property with its fields.
func GetProperty(w http.ResponseWriter, r *http.Request) {
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

	fields, err := appStore.Fields().ListByProperty(r.Context(), property.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch fields")
		return
	}
	privileged := caps.IsAdmin || caps.IsOwner
	view := propertyView{Property: *property, Fields: []models.DynamicField{}}
	for _, f := range fields {
		if privileged || f.Status == models.StatusApproved || f.CreatedBy == actor.ID {
			view.Fields = append(view.Fields, f)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, view)
}

type propertyRequest struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	PropertyType string `json:"propertyType"`
	Status       string `json:"status"`
	ImageURL     string `json:"imageUrl"`
}

// defaultFields are the financial fields every property starts with.
var defaultFields = []struct {
	name      string
	category  string
	frequency string
}{
	{"Property Value", models.CategoryValue, "one-time"},
	{"Monthly Rent", models.CategoryRevenue, "monthly"},
	{"Utilities", models.CategoryExpense, "monthly"},
	{"Furniture Asset Value", models.CategoryAsset, "one-time"},
}

func seedDefaultFields(ctx context.Context, property *models.Property, creator primitive.ObjectID, status string) ([]primitive.ObjectID, error) {
	now := time.Now().UTC()
	created := make([]primitive.ObjectID, 0, len(defaultFields))
	for _, df := range defaultFields {
		field := &models.DynamicField{
			PortfolioID: property.PortfolioID,
			PropertyID:  property.ID,
			Name:        df.name,
			Category:    df.category,
			Type:        models.FieldTypeCurrency,
			Frequency:   df.frequency,
			Currency:    "AUD",
			Value:       nil,
			Status:      status,
			CreatedBy:   creator,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := appStore.Fields().Insert(ctx, field); err != nil {
			return created, err
		}
		created = append(created, field.ID)
	}
	return created, nil
}

// CreateProperty creates a property in the portfolio. Owner and admin
// creations apply directly; a manager-only creation is provisional and
// staged for approval together with its seeded fields.
func CreateProperty(w http.ResponseWriter, r *http.Request) {
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

	var req propertyRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if req.Name == "" || req.Address == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Name and address are required")
		return
	}
	intended := req.Status
	if intended == "" {
		intended = models.PropertyStatusActive
	}
	if !models.ValidPropertyStatus(intended) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid property status")
		return
	}

	deferred := approval.ShouldDefer(caps)
	status := intended
	if deferred {
		status = models.PropertyStatusPending
	}

	now := time.Now().UTC()
	property := &models.Property{
		PortfolioID:  portfolio.ID,
		Name:         req.Name,
		Address:      req.Address,
		PropertyType: req.PropertyType,
		Status:       status,
		ImageURL:     req.ImageURL,
		CreatedBy:    actor.ID,
		UpdatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := appStore.Properties().Insert(r.Context(), property); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create property")
		return
	}

	fieldStatus := models.StatusApproved
	if deferred {
		fieldStatus = models.StatusPending
	}
	if _, err := seedDefaultFields(r.Context(), property, actor.ID, fieldStatus); err != nil {
		log.Printf("CreateProperty: seeding default fields failed for %s: %v", property.ID.Hex(), err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create default fields")
		return
	}

	if !deferred {
		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Created property",
			TargetType: models.TargetProperty,
			TargetID:   property.ID,
			After:      property,
		}.FromRequest(r))
		utils.RespondWithJSON(w, http.StatusCreated, property)
		return
	}

	request, err := engine.Stage(r.Context(), approval.StageInput{
		Kind:        models.ApprovalKindProperty,
		Action:      models.ActionCreate,
		RefID:       property.ID,
		PropertyID:  property.ID,
		PortfolioID: portfolio.ID,
		SubmittedBy: actor.ID,
		Payload: models.ApprovalPayload{Property: &models.PropertyChange{
			Created:  property,
			Proposed: &models.PropertyUpdate{Status: &intended},
		}},
		Compensate: func(ctx context.Context) error {
			if err := appStore.Fields().DeleteByProperty(ctx, property.ID); err != nil {
				return err
			}
			return appStore.Properties().Delete(ctx, property.ID)
		},
	})
	if err != nil {
		respondStageError(w, err)
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Submitted property create for approval",
		TargetType: models.TargetProperty,
		TargetID:   property.ID,
		After:      property,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":  "Property creation pending approval",
		"property": property,
		"approval": request,
	})
}

// UpdateProperty applies or stages a partial update.
func UpdateProperty(w http.ResponseWriter, r *http.Request) {
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

	var req models.PropertyUpdate
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != nil && !models.ValidPropertyStatus(*req.Status) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid property status")
		return
	}

	if approval.ShouldDefer(caps) {
		original := *property
		request, err := engine.Stage(r.Context(), approval.StageInput{
			Kind:        models.ApprovalKindProperty,
			Action:      models.ActionUpdate,
			RefID:       property.ID,
			PropertyID:  property.ID,
			PortfolioID: portfolio.ID,
			SubmittedBy: actor.ID,
			Payload: models.ApprovalPayload{Property: &models.PropertyChange{
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
			Action:     "Submitted property update for approval",
			TargetType: models.TargetProperty,
			TargetID:   property.ID,
			Before:     &original,
			After:      &req,
		}.FromRequest(r))

		utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":  "Property update pending approval",
			"approval": request,
		})
		return
	}

	before := *property
	oldImage := property.ImageURL
	req.ApplyTo(property)
	property.UpdatedBy = actor.ID
	property.UpdatedAt = time.Now().UTC()

	if err := appStore.Properties().Update(r.Context(), property); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update property")
		return
	}

	// The replaced image has no remaining reference.
	if req.ImageURL != nil && oldImage != "" && oldImage != property.ImageURL {
		if err := blobs.Delete(r.Context(), oldImage); err != nil {
			log.Printf("UpdateProperty: old image delete failed: %v", err)
		}
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Updated property",
		TargetType: models.TargetProperty,
		TargetID:   property.ID,
		Before:     &before,
		After:      property,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, property)
}

// DeleteProperty removes a property and everything attached to it, or
// stages the removal for approval.
func DeleteProperty(w http.ResponseWriter, r *http.Request) {
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

	if approval.ShouldDefer(caps) {
		original := *property
		request, err := engine.Stage(r.Context(), approval.StageInput{
			Kind:        models.ApprovalKindProperty,
			Action:      models.ActionDelete,
			RefID:       property.ID,
			PropertyID:  property.ID,
			PortfolioID: portfolio.ID,
			SubmittedBy: actor.ID,
			Payload: models.ApprovalPayload{Property: &models.PropertyChange{
				Original: &original,
			}},
		})
		if err != nil {
			respondStageError(w, err)
			return
		}

		recorder.Record(r.Context(), audit.Entry{
			UserID:     actor.ID,
			Action:     "Submitted property delete for approval",
			TargetType: models.TargetProperty,
			TargetID:   property.ID,
			Before:     &original,
		}.FromRequest(r))

		utils.RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":  "Property deletion pending approval",
			"approval": request,
		})
		return
	}

	docs, err := appStore.Documents().ListByProperty(r.Context(), property.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch documents")
		return
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
		if _, err := blobs.DeleteMany(r.Context(), urls); err != nil {
			log.Printf("DeleteProperty: blob cleanup failed: %v", err)
		}
	}

	if err := appStore.Fields().DeleteByProperty(r.Context(), property.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete fields")
		return
	}
	if err := appStore.Documents().DeleteByProperty(r.Context(), property.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete documents")
		return
	}
	if err := appStore.Notes().DeleteByProperty(r.Context(), property.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete notes")
		return
	}
	if err := appStore.Properties().Delete(r.Context(), property.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete property")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted property",
		TargetType: models.TargetProperty,
		TargetID:   property.ID,
		Before:     property,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Property deleted"})
}

// respondStageError maps staging errors onto HTTP statuses.
func respondStageError(w http.ResponseWriter, err error) {
	if errors.Is(err, approval.ErrAlreadyPending) {
		utils.RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to stage change for approval")
}
