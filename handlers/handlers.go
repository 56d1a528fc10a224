// handlers/handlers.go
package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gorilla/mux"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/blob"
	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
	"github.com/kimtee92/PropMan/websocket"
)

var (
	appStore store.Store
	blobs    blob.Storage
	engine   *approval.Engine
	recorder *audit.Recorder
	hub      *websocket.Hub
)

// Init wires the handler package. Call once at startup before serving.
func Init(st store.Store, b blob.Storage, e *approval.Engine, rec *audit.Recorder, h *websocket.Hub) {
	appStore = st
	blobs = b
	engine = e
	recorder = rec
	hub = h
}

// currentUser resolves the authenticated actor from the request
// context. The auth middleware already verified the user exists.
func currentUser(r *http.Request) (*models.User, bool) {
	idStr, ok := r.Context().Value("userID").(string)
	if !ok || idStr == "" {
		return nil, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		return nil, false
	}
	user, err := appStore.Users().FindByID(r.Context(), id)
	if err != nil {
		return nil, false
	}
	return user, true
}

// pathID extracts and parses an ObjectID route variable.
func pathID(r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func unauthenticated(w http.ResponseWriter) {
	utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
}

// userSummaries resolves a set of ids into display summaries, dropping
// zero ids and tolerating lookup failure.
func userSummaries(r *http.Request, ids ...primitive.ObjectID) map[primitive.ObjectID]models.UserSummary {
	lookup := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			lookup = append(lookup, id)
		}
	}
	summaries, err := appStore.Users().Summaries(r.Context(), lookup)
	if err != nil {
		return map[primitive.ObjectID]models.UserSummary{}
	}
	return summaries
}
