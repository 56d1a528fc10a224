// handlers/note_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type noteView struct {
	models.Note
	Author *models.UserSummary `json:"author,omitempty"`
}

// ListNotes returns a property's notes with author summaries.
func ListNotes(w http.ResponseWriter, r *http.Request) {
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

	notes, err := appStore.Notes().ListByProperty(r.Context(), property.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch notes")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.CreatedBy)
	}
	summaries := userSummaries(r, ids...)

	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		view := noteView{Note: n}
		if s, ok := summaries[n.CreatedBy]; ok {
			a := s
			view.Author = &a
		}
		views = append(views, view)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

type noteRequest struct {
	Content string `json:"content"`
}

// CreateNote appends a note. Notes are never approval-gated; any member
// who can see the property may comment on it.
func CreateNote(w http.ResponseWriter, r *http.Request) {
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

	var req noteRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Note content is required")
		return
	}

	note := &models.Note{
		PropertyID: property.ID,
		Content:    req.Content,
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := appStore.Notes().Insert(r.Context(), note); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create note")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Added note",
		TargetType: models.TargetProperty,
		TargetID:   property.ID,
		After:      note,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusCreated, note)
}

// DeleteNote removes a note. Only the author or an admin may delete.
func DeleteNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, _, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}

	noteID, ok := pathID(r, "noteId")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}
	note, err := appStore.Notes().FindByID(r.Context(), noteID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch note")
		return
	}
	property, err := appStore.Properties().FindByID(r.Context(), note.PropertyID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && property.PortfolioID != portfolio.ID) {
		utils.RespondWithError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch note")
		return
	}

	if note.CreatedBy != actor.ID && actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Only the author or an admin can delete a note")
		return
	}

	if err := appStore.Notes().Delete(r.Context(), note.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted note",
		TargetType: models.TargetProperty,
		TargetID:   note.PropertyID,
		Before:     note,
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}
