package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/wardenlabs/warden/internal/policy"
	"go.uber.org/zap"
)

func TestValidateToolCall_Chain(t *testing.T) {
	ctx := context.Background()
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}

	tests := []struct {
		name      string
		call      ToolCall
		phase     Phase
		wantAllow bool
		wantStage string
	}{
		{
			"malformed call",
			ToolCall{Name: ""},
			PhaseResearch,
			false, StageShape,
		},
		{
			"tool not allowed for role",
			ToolCall{Name: "DeleteRecords"},
			PhaseResearch,
			false, StagePermission,
		},
		{
			"clarify phase denies permitted tool",
			ToolCall{Name: "ConductResearch"},
			PhaseClarify,
			false, StagePhase,
		},
		{
			"research phase denies off-list tool",
			ToolCall{Name: "Search"},
			PhaseResearch,
			false, StagePhase,
		},
		{
			"permitted call allowed",
			ToolCall{Name: "ConductResearch", Args: map[string]any{"topic": "glaciers"}},
			PhaseResearch,
			true, StageAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testValidator(t, researcherPolicy())
			d := v.ValidateToolCall(ctx, conf, tt.call, nil, tt.phase)
			if d.Allowed != tt.wantAllow {
				t.Errorf("allowed = %v, want %v (reason: %s)", d.Allowed, tt.wantAllow, d.Reason)
			}
			if d.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", d.Stage, tt.wantStage)
			}
			if d.Reason == "" {
				t.Error("decision must carry a reason")
			}
		})
	}
}

func TestValidateToolCall_EndToEnd(t *testing.T) {
	// Role "researcher" with the orchestration tools, research phase, no
	// prior identical call, args overlapping user text: allowed.
	v := testValidator(t, researcherPolicy())
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "ConductResearch", Args: map[string]any{"topic": "glacier melt rates arctic"}}
	messages := []Message{Text("Investigate glacier melt rates in the arctic")}

	d := v.ValidateToolCall(context.Background(), conf, call, messages, PhaseResearch)
	if !d.Allowed {
		t.Fatalf("expected allow, got deny at %s: %s", d.Stage, d.Reason)
	}
	if d.Reason != "allowed" {
		t.Errorf("reason = %q, want %q", d.Reason, "allowed")
	}
	if d.Role != "researcher" {
		t.Errorf("role = %q, want researcher", d.Role)
	}
}

func TestValidateToolCall_DuplicateSuppressed(t *testing.T) {
	v := testValidator(t, researcherPolicy())
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "ConductResearch", Args: map[string]any{"topic": "volcanoes"}}

	first := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseResearch)
	if !first.Allowed {
		t.Fatalf("first call denied: %s", first.Reason)
	}

	second := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseResearch)
	if second.Allowed {
		t.Fatal("identical call inside the window was not suppressed")
	}
	if second.Stage != StageDuplicate {
		t.Errorf("stage = %q, want %q", second.Stage, StageDuplicate)
	}
}

func TestValidateToolCall_DeniedCallNotRecorded(t *testing.T) {
	// A call denied by permission or phase must never land in the
	// duplicate table: authorization runs before anything stateful.
	v := testValidator(t, researcherPolicy())
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "ConductResearch", Args: map[string]any{"topic": "storms"}}

	v.ValidateToolCall(context.Background(), conf, call, nil, PhaseClarify)
	if v.dups.Len() != 0 {
		t.Fatal("phase-denied call was recorded in the duplicate table")
	}

	// The same call in a permitted phase passes; no stale suppression.
	d := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseResearch)
	if !d.Allowed {
		t.Errorf("call denied after earlier phase rejection: %s", d.Reason)
	}
}

func TestValidateToolCall_UnalignedConsumesDuplicateSlot(t *testing.T) {
	// Duplication runs before alignment, so a call denied for unrelated
	// intent still anchors the suppression window for its fingerprint.
	v := testValidator(t, researcherPolicy())
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "ConductResearch", Args: map[string]any{"topic": "cryptocurrency"}}
	messages := []Message{Text("Summarize this meeting transcript")}

	first := v.ValidateToolCall(context.Background(), conf, call, messages, PhaseResearch)
	if first.Allowed || first.Stage != StageIntent {
		t.Fatalf("expected intent denial, got %+v", first)
	}

	second := v.ValidateToolCall(context.Background(), conf, call, messages, PhaseResearch)
	if second.Allowed || second.Stage != StageDuplicate {
		t.Errorf("retry should hit duplicate suppression, got %+v", second)
	}
}

func TestValidateToolCall_DuplicateCheckFailureDenies(t *testing.T) {
	// Unserializable args break fingerprinting; the duplicate stage is
	// fail-closed so the call is denied, not waved through.
	v := testValidator(t, researcherPolicy())
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "ConductResearch", Args: map[string]any{"ch": make(chan int)}}

	d := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseResearch)
	if d.Allowed {
		t.Fatal("duplicate-check failure must deny")
	}
	if d.Stage != StageDuplicate {
		t.Errorf("stage = %q, want %q", d.Stage, StageDuplicate)
	}
	if d.Reason != "duplicate check failed" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestValidateToolCall_DefaultRoleUsed(t *testing.T) {
	p := policy.Default()
	p.DefaultRole = "admin"
	p.Roles["admin"] = policy.RoleConfig{AllowedTools: []string{"*"}}
	v := testValidator(t, p)

	d := v.ValidateToolCall(context.Background(), nil, ToolCall{Name: "Anything"}, nil, PhaseBrief)
	if !d.Allowed {
		t.Errorf("default wildcard role denied: %s", d.Reason)
	}
	if d.Role != "admin" {
		t.Errorf("role = %q, want admin", d.Role)
	}
}

// fakeScreener scripts the screener stage for chain tests.
type fakeScreener struct {
	ok     bool
	reason string
	err    error
}

func (f *fakeScreener) Screen(_ context.Context, _ string, _ map[string]any) (bool, string, error) {
	return f.ok, f.reason, f.err
}

func TestValidateToolCall_ScreenerStage(t *testing.T) {
	conf := map[string]any{"configurable": map[string]any{"role": "researcher"}}
	call := ToolCall{Name: "Search", Args: map[string]any{"query": "anything"}}

	newV := func(s Screener) *Validator {
		return New(Config{
			Policies: policy.NewStore(policy.StaticSource{Policy: researcherPolicy()}, zap.NewNop()),
			Screener: s,
			Logger:   zap.NewNop(),
		})
	}

	t.Run("screener denial", func(t *testing.T) {
		v := newV(&fakeScreener{ok: false, reason: "schema validation failed: missing property"})
		d := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseBrief)
		if d.Allowed || d.Stage != StageArguments {
			t.Errorf("got %+v, want arguments denial", d)
		}
	})

	t.Run("screener error is fail-open", func(t *testing.T) {
		v := newV(&fakeScreener{err: errors.New("registry down")})
		d := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseBrief)
		if !d.Allowed {
			t.Errorf("screener error must not block: %+v", d)
		}
	})

	t.Run("screener pass", func(t *testing.T) {
		v := newV(&fakeScreener{ok: true})
		d := v.ValidateToolCall(context.Background(), conf, call, nil, PhaseBrief)
		if !d.Allowed {
			t.Errorf("got %+v, want allow", d)
		}
	})
}
