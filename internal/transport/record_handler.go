package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	// maxJSONBody caps JSON record bodies.
	maxJSONBody = 1 << 20
	// maxUploadMemory bounds the multipart form kept in memory; larger parts spill to disk
	maxUploadMemory = 10 << 20
	// defaultMaxUpload caps a whole multipart body, files included.
	defaultMaxUpload = 32 << 20
)

// ListResponse is the {data, pagination} body returned by every collection
type ListResponse struct {
	Data       []domain.Record `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination describes the page returned in a ListResponse
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// accessPolicy names the roles allowed to write a resource. A nil list admits any authenticated user.
type accessPolicy struct {
	create []string
	modify []string
}

var (
	adminOnly = []string{domain.RoleAdmin}

	policies = map[string]accessPolicy{
		"categories":  {create: adminOnly, modify: adminOnly},
		"coupons":     {create: adminOnly, modify: adminOnly},
		"inventory":   {create: []string{domain.RoleVendor, domain.RoleAdmin}, modify: []string{domain.RoleVendor, domain.RoleAdmin}},
		"inspections": {create: []string{domain.RoleChecker, domain.RoleAdmin}, modify: []string{domain.RoleChecker, domain.RoleAdmin}},
		// anyone signed in may register as a vendor; approval is an admin update
		"vendors": {modify: adminOnly},
	}
)

// RecordHandler serves the REST collections for every registered record kind
type RecordHandler struct {
	records   service.RecordService
	logger    *zap.Logger
	maxUpload int64
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(records service.RecordService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		records:   records,
		logger:    logger,
		maxUpload: defaultMaxUpload,
	}
}

// RegisterRoutes mounts /{resource} and /{resource}/{id} for each record kind behind authMiddleware
func (h *RecordHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		for _, resource := range domain.Resources() {
			policy := policies[resource]
			create := h.gate(policy.create)
			modify := h.gate(policy.modify)

			r.Route("/"+resource, func(r chi.Router) {
				r.Get("/", h.List(resource))
				r.With(create).Post("/", h.Create(resource))
				r.Get("/{id}", h.Get(resource))
				r.With(modify).Put("/{id}", h.Update(resource))
				r.With(modify).Delete("/{id}", h.Delete(resource))
			})
		}
	})
}

func (h *RecordHandler) gate(roles []string) func(http.Handler) http.Handler {
	if slices.Equal(roles, adminOnly) {
		return middleware.RequireAdmin(h.logger)
	}
	return middleware.RequireRole(h.logger, roles...)
}

// List handles GET /{resource}
func (h *RecordHandler) List(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseRecordQuery(r)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := h.records.List(r.Context(), resource, q)
		if err != nil {
			h.respondRecordError(w, resource, err)
			return
		}

		data := result.Records
		if data == nil {
			data = []domain.Record{}
		}
		middleware.RespondWithJSON(w, http.StatusOK, ListResponse{
			Data: data,
			Pagination: Pagination{
				Page:       result.Page,
				PageSize:   result.PageSize,
				Total:      result.Total,
				TotalPages: result.TotalPages,
			},
		})
	}
}

// Get handles GET /{resource}/{id}
func (h *RecordHandler) Get(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := h.records.Get(r.Context(), resource, chi.URLParam(r, "id"))
		if err != nil {
			h.respondRecordError(w, resource, err)
			return
		}
		middleware.RespondWithJSON(w, http.StatusOK, record)
	}
}

// Create handles POST /{resource}. Multipart bodies carry uploads whose metadata is kept on the record.
func (h *RecordHandler) Create(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, docs, err := readRecordBody(w, r, h.maxUpload)
		if err != nil {
			h.logger.Debug("Record body rejected", zap.String("resource", resource), zap.Error(err))
			respondBodyError(w, err)
			return
		}

		record, err := h.records.Create(r.Context(), resource, body, docs...)
		if err != nil {
			h.respondRecordError(w, resource, err)
			return
		}

		userID, _ := middleware.GetUserID(r.Context())
		h.logger.Debug("Record created by user",
			zap.String("resource", resource),
			zap.String("id", record.RecordID()),
			zap.String("user_id", userID),
			zap.Int("documents", len(docs)),
		)
		middleware.RespondWithJSON(w, http.StatusCreated, record)
	}
}

// Update handles PUT /{resource}/{id}
func (h *RecordHandler) Update(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&raw); err != nil {
			respondBodyError(w, err)
			return
		}

		record, err := h.records.Update(r.Context(), resource, chi.URLParam(r, "id"), raw)
		if err != nil {
			h.respondRecordError(w, resource, err)
			return
		}
		middleware.RespondWithJSON(w, http.StatusOK, record)
	}
}

// Delete handles DELETE /{resource}/{id}
func (h *RecordHandler) Delete(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.records.Delete(r.Context(), resource, chi.URLParam(r, "id")); err != nil {
			h.respondRecordError(w, resource, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *RecordHandler) respondRecordError(w http.ResponseWriter, resource string, err error) {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, resource+" record not found")
	case errors.Is(err, repository.ErrRecordAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownKind):
		middleware.RespondWithError(w, http.StatusNotFound, "unknown resource")
	case errors.Is(err, domain.ErrInvalidRecord):
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Record operation failed", zap.String("resource", resource), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseRecordQuery reads search, status, sortBy, sortOrder, page and pageSize
func parseRecordQuery(r *http.Request) (repository.RecordQuery, error) {
	v := r.URL.Query()
	q := repository.RecordQuery{
		Search:    strings.TrimSpace(v.Get("search")),
		Status:    v.Get("status"),
		SortBy:    v.Get("sortBy"),
		SortOrder: repository.SortOrderAsc,
	}

	switch strings.ToLower(v.Get("sortOrder")) {
	case "", "asc":
	case "desc":
		q.SortOrder = repository.SortOrderDesc
	default:
		return q, fmt.Errorf("sortOrder must be asc or desc")
	}

	var err error
	if q.Page, err = positiveParam(v.Get("page")); err != nil {
		return q, fmt.Errorf("page %w", err)
	}
	if q.PageSize, err = positiveParam(v.Get("pageSize")); err != nil {
		return q, fmt.Errorf("pageSize %w", err)
	}
	if q.Page > 0 && q.PageSize == 0 {
		return q, fmt.Errorf("page requires pageSize")
	}
	return q, nil
}

func positiveParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}

// respondBodyError answers 413 for a body over its limit and 400 for anything unreadable.
func respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// readRecordBody returns the record as JSON. Multipart text fields holding a JSON object or
// array are decoded; every other text field stays a string. A multipart body may not exceed
// maxUpload bytes in total.
func readRecordBody(w http.ResponseWriter, r *http.Request, maxUpload int64) ([]byte, []domain.Document, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var raw json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&raw); err != nil {
			return nil, nil, err
		}
		return raw, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, nil, err
	}
	defer r.MultipartForm.RemoveAll()

	fields := make(map[string]any, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if trimmed := strings.TrimSpace(value); strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return nil, nil, fmt.Errorf("field %s: %w", key, err)
			}
			fields[key] = decoded
			continue
		}
		fields[key] = value
	}

	var docs []domain.Document
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			docs = append(docs, domain.Document{
				Field:       field,
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
			})
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Field != docs[j].Field {
			return docs[i].Field < docs[j].Field
		}
		return docs[i].FileName < docs[j].FileName
	})

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, err
	}
	return body, docs, nil
}
