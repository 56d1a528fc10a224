// handlers/audit_handler.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

type auditView struct {
	models.AuditLog
	User *models.UserSummary `json:"user,omitempty"`
}

// ListAuditLog returns audit entries, newest first. Admin only.
// Filters: action (substring), targetType, user (name substring),
// from/to (RFC 3339), today=true (actor's own entries since midnight),
// limit.
func ListAuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	if actor.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	query := r.URL.Query()
	filter := store.AuditFilter{
		Action:     query.Get("action"),
		TargetType: query.Get("targetType"),
	}

	if v := query.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid from timestamp")
			return
		}
		filter.From = t
	}
	if v := query.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid to timestamp")
			return
		}
		filter.To = t
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}

	// "My activity today" shortcut.
	if query.Get("today") == "true" {
		now := time.Now().UTC()
		filter.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		filter.UserIDs = []primitive.ObjectID{actor.ID}
	}

	// A user-name filter resolves to the matching user ids first.
	if name := strings.TrimSpace(query.Get("user")); name != "" && filter.UserIDs == nil {
		users, err := appStore.Users().List(r.Context())
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to resolve user filter")
			return
		}
		ids := []primitive.ObjectID{}
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.Name), strings.ToLower(name)) {
				ids = append(ids, u.ID)
			}
		}
		if len(ids) == 0 {
			utils.RespondWithJSON(w, http.StatusOK, []auditView{})
			return
		}
		filter.UserIDs = ids
	}

	entries, err := appStore.Audits().List(r.Context(), filter)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch audit log")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	summaries := userSummaries(r, ids...)

	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		view := auditView{AuditLog: e}
		if s, ok := summaries[e.UserID]; ok {
			u := s
			view.User = &u
		}
		views = append(views, view)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

// StreamAuditLog upgrades to a websocket carrying new audit entries as
// they are recorded. Admin only.
func StreamAuditLog(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Token required")
		return
	}
	claims, err := utils.ValidateJWT(token)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if claims.Role != models.RoleAdmin {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	hub.Serve(w, r, claims.UserID)
}
