package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/modelfolio/authcore/audit"
)

func (s *Server) auditEnabled(w http.ResponseWriter) bool {
	if s.engine.AuditLogs() == nil || s.engine.Auditor() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "audit trail disabled"})
		return false
	}
	return true
}

func (s *Server) handleQueryAuditLogs(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}

	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	filters := audit.Filters{
		ActorID:      q.Get("actorId"),
		Action:       audit.Action(q.Get("action")),
		ResourceType: audit.ResourceType(q.Get("resourceType")),
		Severity:     audit.Severity(q.Get("severity")),
		Category:     audit.Category(q.Get("category")),
		IP:           q.Get("ipAddress"),
		SearchTerm:   q.Get("search"),
	}
	if v := q.Get("dateFrom"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("dateTo"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}

	result, err := s.engine.AuditLogs().Query(r.Context(), filters, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAppendAuditLog lets collaborating feature modules record content
// actions over HTTP. Actor and action fields are mandatory; id and
// timestamp are recorder-assigned.
func (s *Server) handleAppendAuditLog(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}

	var entry audit.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	if err := entry.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if err := s.engine.Auditor().Record(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}

	stats, err := s.engine.AuditLogs().Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
