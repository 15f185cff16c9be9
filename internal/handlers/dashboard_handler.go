package handlers

import (
	"log"
	"net/http"

	"github.com/fathmn/jokari-knowledge-hub/internal/services"
)

// DashboardHandler handles HTTP requests for the moderator dashboard
type DashboardHandler struct {
	dashboardService *services.DashboardService
	logger           *log.Logger
}

func NewDashboardHandler(dashboardService *services.DashboardService, logger *log.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// GetStats returns the dashboard summary.
// @Summary Get dashboard statistics
// @Description Document and record counts, completeness averages, stale records and queue depth
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.DashboardStats
// @Router /api/dashboard/stats [get]
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.Stats(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

// GetActivity returns the newest audit entries.
// @Summary Get recent activity
// @Tags dashboard
// @Produce json
// @Param limit query int false "Maximum entries" default(50)
// @Success 200 {array} models.AuditLog
// @Router /api/dashboard/activity [get]
func (h *DashboardHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.dashboardService.Activity(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, activity)
}
