package handlers

import (
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/services"
)

const maxUploadBytes = 50 << 20

// DocumentHandler handles HTTP requests for document operations
type DocumentHandler struct {
	docService *services.DocumentService
	ingestion  *services.IngestionService
	logger     *log.Logger
}

func NewDocumentHandler(docService *services.DocumentService, ingestion *services.IngestionService, logger *log.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		ingestion:  ingestion,
		logger:     logger,
	}
}

// UploadFileResult is the outcome of one file in an upload batch.
type UploadFileResult struct {
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UploadBatchResponse wraps the per-file results of an upload request.
type UploadBatchResponse struct {
	Uploaded int                `json:"uploaded"`
	Failed   int                `json:"failed"`
	Results  []UploadFileResult `json:"results"`
}

// UploadDocuments accepts one or more document uploads and queues each for
// ingestion. Files fail individually; one bad file does not abort the batch.
// @Summary Upload documents
// @Description Upload knowledge documents and queue them for parsing and extraction
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Document files"
// @Param department formData string true "Owning department"
// @Param doc_type formData string true "Document type"
// @Param owner formData string true "Document owner"
// @Param version_date formData string false "Version date (RFC 3339 or YYYY-MM-DD)"
// @Param confidentiality formData string false "internal or public" default(internal)
// @Success 201 {object} UploadBatchResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/documents/upload [post]
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		sendError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		sendError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	department := r.FormValue("department")
	docType := r.FormValue("doc_type")
	owner := r.FormValue("owner")
	if department == "" || docType == "" || owner == "" {
		sendError(w, http.StatusBadRequest, "department, doc_type and owner are required")
		return
	}

	var versionDate time.Time
	if raw := r.FormValue("version_date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			sendError(w, http.StatusBadRequest, "invalid version_date: "+raw)
			return
		}
		versionDate = parsed
	}

	batch := UploadBatchResponse{Results: make([]UploadFileResult, 0, len(headers))}
	for _, header := range headers {
		result := h.uploadOne(r, header, department, docType, owner, versionDate)
		if result.Error != "" {
			batch.Failed++
		} else {
			batch.Uploaded++
		}
		batch.Results = append(batch.Results, result)
	}
	sendJSON(w, http.StatusCreated, batch)
}

func (h *DocumentHandler) uploadOne(r *http.Request, header *multipart.FileHeader, department, docType, owner string, versionDate time.Time) UploadFileResult {
	file, err := header.Open()
	if err != nil {
		return UploadFileResult{Filename: header.Filename, Error: "failed to open uploaded file"}
	}
	defer file.Close()

	resp, err := h.docService.Upload(r.Context(), &services.UploadRequest{
		Filename:        header.Filename,
		Content:         file,
		Size:            header.Size,
		ContentType:     header.Header.Get("Content-Type"),
		Department:      department,
		DocType:         docType,
		Owner:           owner,
		Confidentiality: r.FormValue("confidentiality"),
		VersionDate:     versionDate,
	})
	if err != nil {
		h.logger.Printf("Upload of %s failed: %v", header.Filename, err)
		return UploadFileResult{Filename: header.Filename, Error: err.Error()}
	}
	return UploadFileResult{
		DocumentID: resp.Document.ID,
		Filename:   resp.Document.Filename,
		Status:     resp.Document.Status,
	}
}

// GetDocTypes returns the doc types each department may upload.
// @Summary Get the upload permission matrix
// @Tags documents
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/documents/doc-types [get]
func (h *DocumentHandler) GetDocTypes(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.docService.DocTypeCatalog())
}

// ListDocuments lists documents with optional filters.
// @Summary List documents
// @Tags documents
// @Produce json
// @Param department query string false "Filter by department"
// @Param status query string false "Filter by status"
// @Param doc_type query string false "Filter by doc type"
// @Param limit query int false "Page size (max 100)"
// @Param page query int false "Page number, 1-based"
// @Success 200 {array} models.DocumentDTO
// @Router /api/documents [get]
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := repositories.DocumentFilter{
		Department: models.Department(r.URL.Query().Get("department")),
		Status:     models.DocumentStatus(r.URL.Query().Get("status")),
		DocType:    models.DocType(r.URL.Query().Get("doc_type")),
		Limit:      limit,
		Offset:     offset,
	}

	docs, err := h.docService.List(r.Context(), filter)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, docs)
}

// GetDocument returns one document.
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} models.DocumentDTO
// @Failure 404 {object} ErrorResponse
// @Router /api/documents/{id} [get]
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, doc.ToDTO())
}

// GetDocumentStatus reports the ingestion progress of a document.
// @Summary Get document ingestion status
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} services.DocumentProgress
// @Failure 404 {object} ErrorResponse
// @Router /api/documents/{id}/status [get]
func (h *DocumentHandler) GetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.ingestion.Progress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, progress)
}

// GetDocumentChunks returns the document's chunks in order.
// @Summary Get document chunks
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {array} models.ChunkDTO
// @Failure 404 {object} ErrorResponse
// @Router /api/documents/{id}/chunks [get]
func (h *DocumentHandler) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.docService.Chunks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, chunks)
}

// GetDocumentRecords returns the records extracted from the document.
// @Summary Get document records
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {array} models.Record
// @Failure 404 {object} ErrorResponse
// @Router /api/documents/{id}/records [get]
func (h *DocumentHandler) GetDocumentRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.docService.Records(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, records)
}

// DeleteDocument removes a document, its blob and its chunks.
// @Summary Delete a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.docService.Delete(r.Context(), id); err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "document deleted"})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// pagination reads limit/page (or a raw offset) from the query. The page size
// is capped at 100.
func pagination(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 0)
	if limit > 100 {
		limit = 100
	}
	offset = queryInt(r, "offset", 0)
	if page := queryInt(r, "page", 0); page > 1 && limit > 0 {
		offset = (page - 1) * limit
	}
	return limit, offset
}
