// Package handlers exposes the HTTP surface of the knowledge hub. Handlers
// parse and validate transport concerns, delegate to the services, and map
// domain error kinds to status codes.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// SuccessResponse is the body of state-changing requests with no payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, status int, detail string) {
	sendJSON(w, status, ErrorResponse{Detail: detail, Status: status})
}

// sendDomainError maps a service error to its HTTP status.
func sendDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch models.KindOf(err) {
	case models.ErrKindNotFound:
		status = http.StatusNotFound
	case models.ErrKindValidation, models.ErrKindConflict:
		status = http.StatusBadRequest
	case models.ErrKindUpstream:
		status = http.StatusBadGateway
	}
	sendError(w, status, err.Error())
}

// HealthCheckHandler reports process liveness.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
