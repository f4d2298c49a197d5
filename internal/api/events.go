package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wardenlabs/warden/internal/chread"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// handleListEvents implements GET /api/warden/events.
// Query params: role, phase, tool, allowed, start_time, end_time, page, page_size.
func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event store not configured"})
		return
	}

	q := r.URL.Query()

	params := chread.ListDecisionsParams{
		Page:     1,
		PageSize: defaultPageSize,
	}
	if v := q.Get("role"); v != "" {
		params.Role = &v
	}
	if v := q.Get("phase"); v != "" {
		params.Phase = &v
	}
	if v := q.Get("tool"); v != "" {
		params.ToolName = &v
	}
	if v := q.Get("allowed"); v != "" {
		allowed := v == "true" || v == "1"
		params.Allowed = &allowed
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "start_time must be RFC3339"})
			return
		}
		params.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "end_time must be RFC3339"})
			return
		}
		params.EndTime = &t
	}
	if v := q.Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			params.Page = p
		}
	}
	if v := q.Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= maxPageSize {
			params.PageSize = ps
		}
	}

	rows, total, err := d.Reader.ListDecisions(r.Context(), params)
	if err != nil {
		d.Logger.Error("list decision events failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to query events"})
		return
	}

	events := make([]DecisionEventResp, 0, len(rows))
	for _, row := range rows {
		events = append(events, DecisionEventResp{
			RequestID:     row.RequestID,
			ClientID:      row.ClientID,
			Role:          row.Role,
			Phase:         row.Phase,
			ToolName:      row.ToolName,
			ToolArguments: row.ToolArguments,
			Allowed:       row.Allowed == 1,
			Stage:         row.Stage,
			Reason:        row.Reason,
			LatencyMs:     row.LatencyMs,
			Source:        row.Source,
			Timestamp:     row.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, EventListResp{
		Events:   events,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// handleSummary implements GET /api/warden/summary.
// Query param: hours (window size, default 24).
func (d *Dependencies) handleSummary(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event store not configured"})
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			hours = h
		}
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	stats, err := d.Reader.Summary(r.Context(), since)
	if err != nil {
		d.Logger.Error("decision summary failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to query summary"})
		return
	}

	writeJSON(w, http.StatusOK, SummaryResp{
		Total:         stats.Total,
		Allowed:       stats.Allowed,
		Denied:        stats.Denied,
		DeniedByStage: stats.DeniedByStage,
	})
}
