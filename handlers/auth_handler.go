// handlers/auth_handler.go
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a self-service account. Registered users always
// start as viewers; only an admin can raise a role afterwards.
func Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		utils.RespondWithError(w, http.StatusBadRequest, "Name, email and a password of at least 8 characters are required")
		return
	}

	if _, err := appStore.Users().FindByEmail(r.Context(), req.Email); err == nil {
		utils.RespondWithError(w, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to check email")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Printf("Register: hash failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleViewer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := appStore.Users().Insert(r.Context(), user); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     user.ID,
		Action:     "Registered account",
		TargetType: models.TargetUser,
		TargetID:   user.ID,
		After:      user.Summary(),
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusCreated, user)
}

// CurrentUser returns the authenticated user's own record.
func CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}
