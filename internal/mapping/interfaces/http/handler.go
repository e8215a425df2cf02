package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"program-mapping/internal/audit"
	"program-mapping/internal/auth"
	mappingapp "program-mapping/internal/mapping/application"
	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/mapping/interfaces"
	"program-mapping/internal/observability/metrics"
)

const (
	sessionsPath   = "/api/v1/mapping-sessions"
	sessionsPrefix = sessionsPath + "/"
	fieldsPath     = "/api/v1/mapping-fields"
	facetsPath     = "/api/v1/facets"
	auditPath      = "/api/v1/mapping-audit"
)

// Handler serves the mapping session API.
type Handler struct {
	service        *mappingapp.Service
	programChecker auth.ProgramAccessChecker
	auditLogger    audit.Trail
	logger         *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *mappingapp.Service, programChecker auth.ProgramAccessChecker, auditLogger audit.Trail, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("mapping handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, programChecker: programChecker, auditLogger: auditLogger, logger: logger}, nil
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(sessionsPath, h)
	mux.Handle(sessionsPrefix, h)
	mux.Handle(fieldsPath, h)
	mux.Handle(facetsPath, h)
	mux.Handle(auditPath, h)
}

// ServeHTTP routes mapping requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == sessionsPath && r.Method == http.MethodPost:
		h.handleOpen(w, r)
		return
	case path == fieldsPath && r.Method == http.MethodGet:
		h.handleFields(w, r)
		return
	case path == facetsPath && r.Method == http.MethodGet:
		h.handleFacets(w, r)
		return
	case path == auditPath && r.Method == http.MethodGet:
		h.handleAuditTrail(w, r)
		return
	case strings.HasPrefix(path, sessionsPrefix):
		h.handleByID(w, r, strings.TrimPrefix(path, sessionsPrefix))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	session, err := h.service.Session(parts[0])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := h.ensureProgramAccess(r, session.ParentID()); err != nil {
		respondTenantError(w, err)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, session)
			return
		case http.MethodDelete:
			h.service.Close(session.ID())
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "selection":
			if r.Method == http.MethodPost {
				h.handleSelection(w, r, session)
				return
			}
		case "scalar":
			if r.Method == http.MethodPost {
				h.handleScalar(w, r, session)
				return
			}
		case "period-field":
			if r.Method == http.MethodPost {
				h.handlePeriodField(w, r, session)
				return
			}
		case "window":
			if r.Method == http.MethodPost {
				h.handleWindow(w, r, session)
				return
			}
		case "reset-year":
			if r.Method == http.MethodPost {
				h.handleResetYear(w, r, session)
				return
			}
		case "save":
			if r.Method == http.MethodPost {
				h.handleSave(w, r, session)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, session, "xlsx")
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, session, "pdf")
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID string `json:"parent_id"`
		Anchor   *int   `json:"anchor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ParentID) == "" {
		http.Error(w, "parent_id required", http.StatusBadRequest)
		return
	}
	if err := h.ensureProgramAccess(r, req.ParentID); err != nil {
		respondTenantError(w, err)
		return
	}
	session, err := h.service.Open(r.Context(), req.ParentID, req.Anchor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	query := r.URL.Query()
	filter := mapping.FilterState{
		SearchText: query.Get("q"),
		Powers:     multiValue(query["power"]),
		Segments:   multiValue(query["segment"]),
	}
	rows, err := session.ApplyFilter(filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	snap := session.Snapshot()
	resp := struct {
		SessionID string           `json:"sessionId"`
		ParentID  string           `json:"parentId"`
		Version   uint64           `json:"version"`
		Window    mapping.Window   `json:"window"`
		Fields    mapping.FieldSet `json:"fields"`
		Facets    mapping.Facets   `json:"facets"`
		Total     int              `json:"total"`
		Rows      []mapping.Row    `json:"rows"`
	}{
		SessionID: snap.SessionID,
		ParentID:  snap.ParentID,
		Version:   snap.Version,
		Window:    snap.Window,
		Fields:    snap.Fields,
		Facets:    snap.Facets,
		Total:     len(snap.Rows),
		Rows:      rows,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSelection(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req struct {
		Name     string `json:"name"`
		Selected bool   `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	row, err := session.SetSelected(req.Name, req.Selected)
	h.respondEdit(w, session, "selection", row, err)
}

func (h *Handler) handleScalar(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req struct {
		Name  string          `json:"name"`
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	value, err := rawValue(req.Value)
	if err != nil {
		http.Error(w, "invalid value", http.StatusBadRequest)
		return
	}
	row, err := session.EditScalar(req.Name, req.Field, value)
	h.respondEdit(w, session, "scalar", row, err)
}

func (h *Handler) handlePeriodField(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req struct {
		Name     string          `json:"name"`
		PeriodID string          `json:"period_id"`
		Field    string          `json:"field"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	value, err := rawValue(req.Value)
	if err != nil {
		http.Error(w, "invalid value", http.StatusBadRequest)
		return
	}
	row, err := session.EditPeriodField(req.Name, req.PeriodID, req.Field, value)
	if err != nil && errors.Is(err, mapping.ErrNotFound) && row.Name != "" {
		h.logger.Printf("mapping edit anomaly: session=%s product=%q period=%q not in row", session.ID(), req.Name, req.PeriodID)
	}
	h.respondEdit(w, session, "period_field", row, err)
}

func (h *Handler) respondEdit(w http.ResponseWriter, session *mappingapp.Session, kind string, row mapping.Row, err error) {
	if err != nil {
		metrics.IncEdit(kind, editResult(err))
		respondServiceError(w, err)
		return
	}
	metrics.IncEdit(kind, metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]any{
		"version": session.Version(),
		"row":     row,
	})
}

func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	var req struct {
		Anchor *int `json:"anchor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Anchor == nil {
		http.Error(w, "anchor required", http.StatusBadRequest)
		return
	}
	snap, dropped, err := session.ShiftWindow(*req.Anchor)
	h.respondShift(w, r, session, snap, dropped, err)
}

func (h *Handler) handleResetYear(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	snap, dropped, err := session.ResetYear()
	h.respondShift(w, r, session, snap, dropped, err)
}

func (h *Handler) respondShift(w http.ResponseWriter, r *http.Request, session *mappingapp.Session, snap mappingapp.Snapshot, dropped []string, err error) {
	if err != nil {
		respondServiceError(w, err)
		return
	}
	metrics.ObserveWindowShift(len(dropped))
	if len(dropped) > 0 {
		h.logger.Printf("mapping window shift: session=%s dropped periods %v", session.ID(), dropped)
	}
	if dropped == nil {
		dropped = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":       snap,
		"droppedPeriods": dropped,
	})
	h.logAudit(r, session.ParentID(), session.ID(), audit.ActionMappingWindow, map[string]any{
		"anchor":  snap.Window.Anchor(),
		"dropped": dropped,
	})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, session *mappingapp.Session) {
	result, err := h.service.Save(r.Context(), session.ID())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": result.SessionID,
		"parent_id":  result.ParentID,
		"rows":       result.Rows,
		"created":    result.Created,
		"updated":    result.Updated,
	})
	h.logAudit(r, result.ParentID, result.SessionID, audit.ActionMappingSave, map[string]any{
		"rows":    result.Rows,
		"created": result.Created,
		"updated": result.Updated,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, session *mappingapp.Session, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	rows, err := session.Visible()
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	snap := session.Snapshot()

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildMappingPDF(snap, rows)
		contentType = "application/pdf"
	default:
		data, err = interfaces.BuildMappingXLSX(snap, rows)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("mapping export %s failed: session=%s err=%v", format, session.ID(), err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"mapping-"+session.ParentID()+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, session.ParentID(), session.ID(), audit.ActionMappingExport, map[string]any{"format": format, "rows": len(rows), "filter": session.Filter()})
}

func (h *Handler) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Fields(r.Context()))
}

func (h *Handler) handleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.service.Facets(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	parentID := strings.TrimSpace(r.URL.Query().Get("parent_id"))
	if parentID == "" {
		http.Error(w, "parent_id is required", http.StatusBadRequest)
		return
	}
	if err := h.ensureProgramAccess(r, parentID); err != nil {
		respondTenantError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if h.auditLogger == nil {
		writeJSON(w, http.StatusOK, []auditEntry{})
		return
	}
	entries, err := h.auditLogger.List(r.Context(), audit.Query{
		TenantID: auth.TenantIDFromContext(r.Context()),
		ParentID: parentID,
		Limit:    limit,
	})
	if err != nil {
		h.logger.Printf("mapping audit trail: parent=%s err=%v", parentID, err)
		http.Error(w, "audit trail error", http.StatusInternalServerError)
		return
	}
	out := make([]auditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntry{
			ID:        e.ID,
			Action:    e.Action,
			Actor:     e.Actor,
			Role:      e.Role,
			SessionID: e.ResourceID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type auditEntry struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Role      string          `json:"role"`
	SessionID string          `json:"sessionId"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (h *Handler) ensureProgramAccess(r *http.Request, programID string) error {
	if h.programChecker == nil {
		return nil
	}
	return h.programChecker.EnsureProgramAccess(r.Context(), programID)
}

func (h *Handler) logAudit(r *http.Request, parentID, sessionID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: audit.ResourceMappingSession,
		ResourceID:   sessionID,
		ParentID:     parentID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Printf("mapping audit: action=%s err=%v", action, err)
	}
}

// rawValue turns a JSON scalar into the text the session parses. Strings are
// unquoted, null becomes empty and numbers keep their literal form.
func rawValue(raw json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", err
	}
	return number.String(), nil
}

func multiValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func editResult(err error) string {
	if errors.Is(err, mapping.ErrNotFound) {
		return metrics.ResultNotFound
	}
	return metrics.ResultError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) || errors.Is(err, auth.ErrOutOfScope) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrTenantMismatch), errors.Is(err, auth.ErrOutOfScope):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, mappingapp.ErrSessionNotFound), errors.Is(err, mapping.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, mappingapp.ErrSaveInProgress), errors.Is(err, mappingapp.ErrSessionNotReady):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, mapping.ErrNoRowsSelected):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, mapping.ErrSaveFailure), errors.Is(err, mapping.ErrLoadFailure):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
