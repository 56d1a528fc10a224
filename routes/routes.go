package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kimtee92/PropMan/handlers"
	"github.com/kimtee92/PropMan/middleware"
	"github.com/kimtee92/PropMan/ratelimit"
	"github.com/kimtee92/PropMan/store"
)

// HTTP method constants for better maintainability
var (
	MethodsGetOnly    = []string{"GET", "OPTIONS"}
	MethodsPostOnly   = []string{"POST", "OPTIONS"}
	MethodsPutOnly    = []string{"PUT", "OPTIONS"}
	MethodsDeleteOnly = []string{"DELETE", "OPTIONS"}
)

const (
	PathAPI    = "/api"
	PathHealth = "/health"
)

// RegisterRoutes wires the full HTTP surface. The limiter throttles
// registration and approval decisions.
func RegisterRoutes(r *mux.Router, st store.Store, limiter *ratelimit.Limiter) {
	// ====================
	// HEALTH CHECK (Public)
	// ====================
	r.HandleFunc(PathHealth, handlers.HealthCheck).Methods(MethodsGetOnly...)

	// ====================
	// AUTHENTICATION (Public)
	// ====================
	// Token issuance lives with the external auth collaborator; only
	// self-registration is served here.
	r.Handle("/api/auth/register", limiter.Middleware(http.HandlerFunc(handlers.Register))).Methods(MethodsPostOnly...)

	// ====================
	// AUDIT STREAM (token via query, upgrades to websocket)
	// ====================
	r.HandleFunc("/api/audit-log/stream", handlers.StreamAuditLog).Methods(MethodsGetOnly...)

	// ====================
	// PROTECTED API ROUTES
	// ====================
	apiRouter := r.PathPrefix(PathAPI).Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(st.Users()))

	// ====================
	// USER MANAGEMENT
	// ====================
	apiRouter.HandleFunc("/user/me", handlers.CurrentUser).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/users", handlers.ListUsers).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/users", handlers.CreateUser).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/users/{id}", handlers.UpdateUser).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/users/{id}", handlers.DeleteUser).Methods(MethodsDeleteOnly...)

	// ====================
	// PORTFOLIOS
	// ====================
	apiRouter.HandleFunc("/portfolios", handlers.ListPortfolios).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios", handlers.CreatePortfolio).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}", handlers.GetPortfolio).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios/{id}", handlers.UpdatePortfolio).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/portfolios/{id}", handlers.DeletePortfolio).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/members", handlers.AssignMember).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/summary", handlers.PortfolioSummary).Methods(MethodsGetOnly...)

	// ====================
	// PROPERTIES
	// ====================
	apiRouter.HandleFunc("/portfolios/{id}/properties", handlers.ListProperties).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties", handlers.CreateProperty).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}", handlers.GetProperty).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}", handlers.UpdateProperty).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}", handlers.DeleteProperty).Methods(MethodsDeleteOnly...)

	// ====================
	// DYNAMIC FIELDS
	// ====================
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}/fields", handlers.CreateField).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/fields/{fieldId}", handlers.UpdateField).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/fields/{fieldId}", handlers.DeleteField).Methods(MethodsDeleteOnly...)

	// ====================
	// DOCUMENTS
	// ====================
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}/documents", handlers.ListDocuments).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}/documents", handlers.CreateDocument).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/documents/{docId}", handlers.DeleteDocument).Methods(MethodsDeleteOnly...)

	// ====================
	// NOTES
	// ====================
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}/notes", handlers.ListNotes).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/properties/{propertyId}/notes", handlers.CreateNote).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/portfolios/{id}/notes/{noteId}", handlers.DeleteNote).Methods(MethodsDeleteOnly...)

	// ====================
	// APPROVALS (Admin)
	// ====================
	apiRouter.HandleFunc("/approvals", handlers.ListApprovals).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/approvals/{id}", handlers.GetApproval).Methods(MethodsGetOnly...)
	apiRouter.Handle("/approvals/decide", limiter.Middleware(http.HandlerFunc(handlers.Decide))).Methods(MethodsPostOnly...)

	// ====================
	// AUDIT LOG (Admin)
	// ====================
	apiRouter.HandleFunc("/audit-log", handlers.ListAuditLog).Methods(MethodsGetOnly...)
}
