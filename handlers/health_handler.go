// handlers/health_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/kimtee92/PropMan/utils"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
