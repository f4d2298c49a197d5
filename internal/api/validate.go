package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wardenlabs/warden/internal/storage"
	"github.com/wardenlabs/warden/internal/validator"
)

// handleValidate implements POST /v1/validate.
// Auth middleware has already validated the Bearer token and injected the client.
func (d *Dependencies) handleValidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ValidateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	call := validator.ToolCall{
		Name: req.ToolCall.Name,
		Args: req.ToolCall.Args,
	}

	var messages []validator.Message
	for _, m := range req.Messages {
		messages = append(messages, validator.Text(m.Content))
	}

	decision := d.Validator.ValidateToolCall(r.Context(), req.Config, call, messages, validator.Phase(req.Phase))

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Fire-and-forget: write the decision to the audit trail.
	d.writeDecisionEvent(r, req, requestID, decision, float32(latencyMs))

	writeJSON(w, http.StatusOK, ValidateResponse{
		Allowed:   decision.Allowed,
		Reason:    decision.Reason,
		Stage:     decision.Stage,
		Role:      decision.Role,
		RequestID: requestID,
		LatencyMs: latencyMs,
	})
}

// writeDecisionEvent builds a DecisionEvent and fires it to the async writer.
func (d *Dependencies) writeDecisionEvent(r *http.Request, req ValidateRequest, requestID string, decision validator.Decision, latencyMs float32) {
	var clientID string
	if c := clientFromContext(r.Context()); c != nil {
		clientID = c.ClientID
	}

	var argsJSON string
	if req.ToolCall.Args != nil {
		if raw, err := json.Marshal(req.ToolCall.Args); err == nil {
			argsJSON = string(raw)
		}
	}

	d.Writer.Write(&storage.DecisionEvent{
		RequestID:     requestID,
		ClientID:      clientID,
		Timestamp:     time.Now(),
		Role:          decision.Role,
		Phase:         req.Phase,
		ToolName:      req.ToolCall.Name,
		ToolArguments: storage.TruncateArguments(argsJSON, storage.ArgumentPreviewLength),
		Allowed:       decision.Allowed,
		Stage:         decision.Stage,
		Reason:        decision.Reason,
		LatencyMs:     latencyMs,
		Source:        "http",
	})
}

// handleOutputFormats implements POST /v1/validate/output-formats.
func (d *Dependencies) handleOutputFormats(w http.ResponseWriter, r *http.Request) {
	var req OutputFormatsRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	ok, reason := validator.CheckOutputFormatConflict(req.Formats)
	writeJSON(w, http.StatusOK, OutputFormatsResponse{OK: ok, Reason: reason})
}

// handleFilterTools implements POST /v1/tools/filter.
func (d *Dependencies) handleFilterTools(w http.ResponseWriter, r *http.Request) {
	var req FilterToolsRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	descriptors := make([]validator.ToolDescriptor, 0, len(req.Tools))
	for _, t := range req.Tools {
		descriptors = append(descriptors, t)
	}

	filtered := d.Validator.FilterToolsByRole(req.Config, descriptors)

	tools := make([]ToolRef, 0, len(filtered))
	for _, t := range filtered {
		tools = append(tools, t.(ToolRef))
	}

	writeJSON(w, http.StatusOK, FilterToolsResponse{
		Role:  d.Validator.ResolveRole(req.Config),
		Tools: tools,
	})
}
