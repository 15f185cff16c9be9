package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/services"
)

// ReviewHandler handles HTTP requests for the moderator workflow
type ReviewHandler struct {
	reviewService *services.ReviewService
	logger        *log.Logger
}

func NewReviewHandler(reviewService *services.ReviewService, logger *log.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

// reviewerRequest carries the acting moderator of a decision. Both
// "reviewer" and "actor" name the moderator.
type reviewerRequest struct {
	Reviewer string `json:"reviewer"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason,omitempty"`
}

func decodeReviewer(r *http.Request) (reviewerRequest, bool) {
	var req reviewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	if req.Reviewer == "" {
		req.Reviewer = req.Actor
	}
	return req, req.Reviewer != ""
}

// GetReviewQueue lists records awaiting moderation.
// @Summary Get the review queue
// @Description Records awaiting review, least complete first by default
// @Tags review
// @Produce json
// @Param department query string false "Filter by department"
// @Param schema_type query string false "Filter by schema"
// @Param status query string false "Filter by record status"
// @Param sort_by query string false "completeness, created or updated" default(completeness)
// @Param limit query int false "Page size (max 100)"
// @Param page query int false "Page number, 1-based"
// @Success 200 {array} models.Record
// @Router /api/review/queue [get]
func (h *ReviewHandler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := services.QueueFilter{
		Department: models.Department(r.URL.Query().Get("department")),
		SchemaType: r.URL.Query().Get("schema_type"),
		Status:     models.RecordStatus(r.URL.Query().Get("status")),
		SortBy:     r.URL.Query().Get("sort_by"),
		Limit:      limit,
		Offset:     offset,
	}

	queue, err := h.reviewService.Queue(r.Context(), filter)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, queue)
}

// GetRecordDetail returns a record with evidence, updates, attachments and
// its audit trail.
// @Summary Get record detail
// @Tags review
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} services.RecordDetail
// @Failure 404 {object} ErrorResponse
// @Router /api/review/records/{id} [get]
func (h *ReviewHandler) GetRecordDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.reviewService.Detail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, detail)
}

// ApproveRecord approves a record under review.
// @Summary Approve a record
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param body body reviewerRequest true "Acting reviewer"
// @Success 200 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Router /api/review/records/{id}/approve [post]
func (h *ReviewHandler) ApproveRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReviewer(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	record, err := h.reviewService.Approve(r.Context(), mux.Vars(r)["id"], req.Reviewer)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, record)
}

// RejectRecord rejects a record under review.
// @Summary Reject a record
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param body body reviewerRequest true "Acting reviewer with optional reason"
// @Success 200 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Router /api/review/records/{id}/reject [post]
func (h *ReviewHandler) RejectRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReviewer(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	record, err := h.reviewService.Reject(r.Context(), mux.Vars(r)["id"], req.Reviewer, req.Reason)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, record)
}

// editRecordRequest replaces a record's extracted data.
type editRecordRequest struct {
	Editor string                 `json:"editor"`
	Data   map[string]interface{} `json:"data"`
}

// EditRecord replaces the record data and recomputes derived fields.
// @Summary Edit a record
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param body body editRecordRequest true "Editor and replacement data"
// @Success 200 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Router /api/review/records/{id} [put]
func (h *ReviewHandler) EditRecord(w http.ResponseWriter, r *http.Request) {
	var req editRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Editor == "" {
		sendError(w, http.StatusBadRequest, "editor is required")
		return
	}

	record, err := h.reviewService.Edit(r.Context(), mux.Vars(r)["id"], req.Editor, req.Data)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, record)
}

// GetPendingUpdates lists all open proposed updates.
// @Summary Get pending updates
// @Tags review
// @Produce json
// @Success 200 {array} models.ProposedUpdate
// @Router /api/review/updates [get]
func (h *ReviewHandler) GetPendingUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.reviewService.PendingUpdates(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, updates)
}

// GetUpdate returns one proposed update.
// @Summary Get a proposed update
// @Tags review
// @Produce json
// @Param id path string true "Update ID"
// @Success 200 {object} models.ProposedUpdate
// @Failure 404 {object} ErrorResponse
// @Router /api/review/updates/{id} [get]
func (h *ReviewHandler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	update, err := h.reviewService.GetUpdate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, update)
}

// ApproveUpdate applies a proposed update to its target record.
// @Summary Approve a proposed update
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Update ID"
// @Param body body reviewerRequest true "Acting reviewer"
// @Success 200 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Router /api/review/updates/{id}/approve [post]
func (h *ReviewHandler) ApproveUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReviewer(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	record, err := h.reviewService.ApproveUpdate(r.Context(), mux.Vars(r)["id"], req.Reviewer)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, record)
}

// RejectUpdate discards a proposed update.
// @Summary Reject a proposed update
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Update ID"
// @Param body body reviewerRequest true "Acting reviewer"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/review/updates/{id}/reject [post]
func (h *ReviewHandler) RejectUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReviewer(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	if err := h.reviewService.RejectUpdate(r.Context(), mux.Vars(r)["id"], req.Reviewer); err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "update rejected"})
}

// AddAttachment uploads a file against a record.
// @Summary Add a record attachment
// @Tags review
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Record ID"
// @Param file formData file true "Attachment file"
// @Success 201 {object} models.RecordAttachment
// @Failure 400 {object} ErrorResponse
// @Router /api/review/records/{id}/attachments [post]
func (h *ReviewHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		sendError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	attachment, err := h.reviewService.AddAttachment(
		r.Context(),
		mux.Vars(r)["id"],
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, attachment)
}

// GetAttachments lists a record's attachments with download URLs.
// @Summary List record attachments
// @Tags review
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {array} models.RecordAttachment
// @Failure 404 {object} ErrorResponse
// @Router /api/review/records/{id}/attachments [get]
func (h *ReviewHandler) GetAttachments(w http.ResponseWriter, r *http.Request) {
	attachments, err := h.reviewService.Attachments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, attachments)
}

// DeleteAttachment removes an attachment and its stored blob.
// @Summary Delete a record attachment
// @Tags review
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/review/attachments/{id} [delete]
func (h *ReviewHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.reviewService.DeleteAttachment(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "attachment deleted"})
}
