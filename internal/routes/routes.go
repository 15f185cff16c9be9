// Package routes wires the HTTP handlers onto the router.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fathmn/jokari-knowledge-hub/internal/handlers"
)

// Handlers bundles everything the router needs.
type Handlers struct {
	Document  *handlers.DocumentHandler
	Review    *handlers.ReviewHandler
	Knowledge *handlers.KnowledgeHandler
	Dashboard *handlers.DashboardHandler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Health endpoints
	router.HandleFunc("/health", handlers.HealthCheckHandler).Methods(http.MethodGet)

	// Document upload and ingestion
	router.HandleFunc("/api/documents/upload", h.Document.UploadDocuments).Methods(http.MethodPost)
	router.HandleFunc("/api/documents/doc-types", h.Document.GetDocTypes).Methods(http.MethodGet)
	router.HandleFunc("/api/documents", h.Document.ListDocuments).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", h.Document.GetDocument).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", h.Document.DeleteDocument).Methods(http.MethodDelete)
	router.HandleFunc("/api/documents/{id}/status", h.Document.GetDocumentStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/chunks", h.Document.GetDocumentChunks).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/records", h.Document.GetDocumentRecords).Methods(http.MethodGet)

	// Moderator review workflow
	router.HandleFunc("/api/review/queue", h.Review.GetReviewQueue).Methods(http.MethodGet)
	router.HandleFunc("/api/review/records/{id}", h.Review.GetRecordDetail).Methods(http.MethodGet)
	router.HandleFunc("/api/review/records/{id}", h.Review.EditRecord).Methods(http.MethodPut)
	router.HandleFunc("/api/review/records/{id}/approve", h.Review.ApproveRecord).Methods(http.MethodPost)
	router.HandleFunc("/api/review/records/{id}/reject", h.Review.RejectRecord).Methods(http.MethodPost)
	router.HandleFunc("/api/review/records/{id}/attachments", h.Review.AddAttachment).Methods(http.MethodPost)
	router.HandleFunc("/api/review/records/{id}/attachments", h.Review.GetAttachments).Methods(http.MethodGet)
	router.HandleFunc("/api/review/attachments/{id}", h.Review.DeleteAttachment).Methods(http.MethodDelete)
	router.HandleFunc("/api/review/updates", h.Review.GetPendingUpdates).Methods(http.MethodGet)
	router.HandleFunc("/api/review/updates/{id}", h.Review.GetUpdate).Methods(http.MethodGet)
	router.HandleFunc("/api/review/updates/{id}/approve", h.Review.ApproveUpdate).Methods(http.MethodPost)
	router.HandleFunc("/api/review/updates/{id}/reject", h.Review.RejectUpdate).Methods(http.MethodPost)

	// Approved knowledge base
	router.HandleFunc("/api/knowledge/search", h.Knowledge.Search).Methods(http.MethodGet)
	router.HandleFunc("/api/knowledge/schemas", h.Knowledge.GetSchemas).Methods(http.MethodGet)
	router.HandleFunc("/api/knowledge/stats", h.Knowledge.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/api/knowledge/departments", h.Knowledge.GetDepartments).Methods(http.MethodGet)

	// Moderator dashboard
	router.HandleFunc("/api/dashboard/stats", h.Dashboard.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/api/dashboard/activity", h.Dashboard.GetActivity).Methods(http.MethodGet)
}
