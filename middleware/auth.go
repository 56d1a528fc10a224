package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/utils"
)

// AuthMiddleware validates the bearer token and re-reads the user so a
// role change or deletion takes effect on the next request, not at
// token expiry.
func AuthMiddleware(users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := utils.ValidateJWT(tokenString)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID format")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				log.Printf("AuthMiddleware: user %s not found: %v", userID.Hex(), err)
				utils.RespondWithError(w, http.StatusUnauthorized, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), "userID", user.ID.Hex())
			ctx = context.WithValue(ctx, "userName", user.Name)
			ctx = context.WithValue(ctx, "userRole", user.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
