package api

import "time"

// --- POST /v1/validate ---

// ToolCallReq is the proposed tool invocation.
type ToolCallReq struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// MessageReq carries the textual content of one user-authored message.
type MessageReq struct {
	Content string `json:"content"`
}

// ValidateRequest is the JSON body for POST /v1/validate.
type ValidateRequest struct {
	Config   map[string]any `json:"config,omitempty"`
	ToolCall ToolCallReq    `json:"tool_call"`
	Messages []MessageReq   `json:"messages,omitempty"`
	Phase    string         `json:"phase,omitempty"`
}

// ValidateResponse is the verdict for one proposed call.
type ValidateResponse struct {
	Allowed   bool    `json:"allowed"`
	Reason    string  `json:"reason"`
	Stage     string  `json:"stage"`
	Role      string  `json:"role"`
	RequestID string  `json:"request_id"`
	LatencyMs float64 `json:"latency_ms"`
}

// --- POST /v1/validate/output-formats ---

// OutputFormatsRequest carries a batch of response-format descriptors.
// Descriptors are caller-defined maps; only "type" and "strict" are read.
type OutputFormatsRequest struct {
	Formats []map[string]any `json:"formats"`
}

// OutputFormatsResponse reports whether the batch conflicts.
type OutputFormatsResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// --- POST /v1/tools/filter ---

// ToolRef is a tool descriptor in a filter request. Extra fields are
// preserved on the way back out.
type ToolRef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolName implements validator.ToolDescriptor.
func (t ToolRef) ToolName() string { return t.Name }

// FilterToolsRequest is the JSON body for POST /v1/tools/filter.
type FilterToolsRequest struct {
	Config map[string]any `json:"config,omitempty"`
	Tools  []ToolRef      `json:"tools"`
}

// FilterToolsResponse returns the subset permitted for the resolved role.
type FilterToolsResponse struct {
	Role  string    `json:"role"`
	Tools []ToolRef `json:"tools"`
}

// --- GET /api/warden/events ---

// DecisionEventResp mirrors one decision_events row.
type DecisionEventResp struct {
	RequestID     string    `json:"request_id"`
	ClientID      string    `json:"client_id"`
	Role          string    `json:"role"`
	Phase         string    `json:"phase"`
	ToolName      string    `json:"tool_name"`
	ToolArguments string    `json:"tool_arguments"`
	Allowed       bool      `json:"allowed"`
	Stage         string    `json:"stage"`
	Reason        string    `json:"reason"`
	LatencyMs     float32   `json:"latency_ms"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventListResp is the paginated decision list.
type EventListResp struct {
	Events   []DecisionEventResp `json:"events"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// --- GET /api/warden/summary ---

// SummaryResp holds aggregate decision counts.
type SummaryResp struct {
	Total         int            `json:"total"`
	Allowed       int            `json:"allowed"`
	Denied        int            `json:"denied"`
	DeniedByStage map[string]int `json:"denied_by_stage"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
