package validator

// ToolCall is a proposed tool invocation awaiting a verdict.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Message exposes the textual content of a conversation message. The
// engine never looks at sender, role, or metadata, only the text.
type Message interface {
	Content() string
}

// Text is the trivial Message implementation for plain strings.
type Text string

func (t Text) Content() string { return string(t) }

// ToolDescriptor is the minimal surface of a tool definition the engine
// needs for role-based filtering.
type ToolDescriptor interface {
	ToolName() string
}

// Phase identifies which stage of the surrounding pipeline issued a call.
// Supplied by the caller per call; the engine keeps no transition history.
type Phase string

const (
	PhaseClarify  Phase = "clarify"
	PhaseResearch Phase = "research"
	PhaseBrief    Phase = "brief"
	PhaseReport   Phase = "report"
)

// Stage names identify which link of the validation chain produced a
// decision. Recorded on Decision and in the audit trail.
const (
	StageShape      = "shape"
	StagePermission = "permission"
	StagePhase      = "phase"
	StageDuplicate  = "duplicate"
	StageIntent     = "intent"
	StageArguments  = "arguments"
	StageAllowed    = "allowed"
)

// Decision is the outcome of validating one tool call.
type Decision struct {
	Allowed bool
	Reason  string
	Stage   string // which chain stage decided
	Role    string // role the call was evaluated under
}

func deny(stage, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Stage: stage}
}
