package handlers

import (
	"log"
	"net/http"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/services"
)

// KnowledgeHandler handles HTTP requests against the approved knowledge base
type KnowledgeHandler struct {
	searchService    *services.SearchService
	dashboardService *services.DashboardService
	logger           *log.Logger
}

func NewKnowledgeHandler(searchService *services.SearchService, dashboardService *services.DashboardService, logger *log.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		searchService:    searchService,
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Search answers a keyword query over approved records.
// @Summary Search the knowledge base
// @Description Keyword search across approved records, ranked by relevance and completeness
// @Tags knowledge
// @Produce json
// @Param q query string true "Search query"
// @Param department query string false "Filter by department"
// @Param schema query string false "Filter by schema"
// @Param limit query int false "Maximum results" default(20)
// @Success 200 {array} services.SearchResult
// @Failure 400 {object} ErrorResponse
// @Router /api/knowledge/search [get]
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	schemaType := r.URL.Query().Get("schema")
	if schemaType == "" {
		schemaType = r.URL.Query().Get("schema_type")
	}
	req := services.SearchRequest{
		Query:      r.URL.Query().Get("q"),
		Department: models.Department(r.URL.Query().Get("department")),
		SchemaType: schemaType,
		Limit:      queryInt(r, "limit", 0),
	}

	results, err := h.searchService.Search(r.Context(), req)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, results)
}

// GetSchemas returns the record schema catalog.
// @Summary List record schemas
// @Tags knowledge
// @Produce json
// @Success 200 {array} services.SchemaInfo
// @Router /api/knowledge/schemas [get]
func (h *KnowledgeHandler) GetSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.dashboardService.Schemas(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, schemas)
}

// GetStats breaks the record base down by status, department and schema.
// @Summary Knowledge base statistics
// @Tags knowledge
// @Produce json
// @Success 200 {object} services.KnowledgeStats
// @Router /api/knowledge/stats [get]
func (h *KnowledgeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.KnowledgeCounts(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

// GetDepartments returns the department upload permission matrix.
// @Summary List departments and their document types
// @Tags knowledge
// @Produce json
// @Success 200 {array} services.DepartmentCatalog
// @Router /api/knowledge/departments [get]
func (h *KnowledgeHandler) GetDepartments(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, h.dashboardService.Departments())
}
