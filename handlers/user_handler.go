// handlers/user_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

// ListUsers returns every user. Admins and managers may list (managers
// need the directory to read member names); viewers may not.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleManager {
		utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	users, err := appStore.Users().List(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser lets an admin provision an account with any role.
func CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req createUserRequest
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
	if !models.ValidRole(req.Role) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid role")
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
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := appStore.Users().Insert(r.Context(), user); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Created user",
		TargetType: models.TargetUser,
		TargetID:   user.ID,
		After:      user.Summary(),
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// UpdateUser lets an admin rename a user or change their global role.
func UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	userID, ok := pathID(r, "id")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req updateUserRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := appStore.Users().FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	before := user.Summary()
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		user.Role = *req.Role
	}
	user.UpdatedAt = time.Now().UTC()

	if err := appStore.Users().Update(r.Context(), user); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Updated user",
		TargetType: models.TargetUser,
		TargetID:   user.ID,
		Before:     before,
		After:      user.Summary(),
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, user)
}

// DeleteUser removes an account. Admin only, and never the admin's own.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	userID, ok := pathID(r, "id")
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if userID == actor.ID {
		utils.RespondWithError(w, http.StatusForbidden, "You cannot delete your own account")
		return
	}

	user, err := appStore.Users().FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if err := appStore.Users().Delete(r.Context(), userID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	recorder.Record(r.Context(), audit.Entry{
		UserID:     actor.ID,
		Action:     "Deleted user",
		TargetType: models.TargetUser,
		TargetID:   userID,
		Before:     user.Summary(),
	}.FromRequest(r))

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
