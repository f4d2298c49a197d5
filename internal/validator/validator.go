// Package validator decides, before a requested tool call is executed by
// an agent pipeline, whether that invocation is permitted. Decisions come
// from an ordered short-circuit chain: shape, role permission, phase
// gating, duplicate suppression, intent alignment, and optional argument
// screening for registered tools.
package validator

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/policy"
	"go.uber.org/zap"
)

// Screener runs supplemental argument screening for a call after the core
// chain passes. Implementations return ok=false with a reason to deny, or
// an error when screening could not run.
type Screener interface {
	Screen(ctx context.Context, toolName string, args map[string]any) (ok bool, reason string, err error)
}

// failMode names a stage's behavior when the stage itself errors rather
// than producing a verdict.
type failMode int

const (
	failClosed failMode = iota // stage error → deny
	failOpen                   // stage error → pass
)

// failModeFor is the per-stage error policy. Duplicate suppression
// errors deny; intent alignment and argument screening errors pass.
func failModeFor(stage string) failMode {
	if stage == StageDuplicate {
		return failClosed
	}
	return failOpen
}

// Config assembles a Validator.
type Config struct {
	Policies        *policy.Store
	MaxTrackedCalls int           // duplicate table cap; 0 = default
	Aligner         AlignerConfig // zero value = defaults
	Screener        Screener      // nil = no argument screening
	Logger          *zap.Logger
}

// Validator composes the validation chain. Safe for concurrent use; the
// duplicate table is the only mutable state and the Suppressor guards it.
type Validator struct {
	policies *policy.Store
	dups     *Suppressor
	aligner  AlignerConfig
	screener Screener
	logger   *zap.Logger
}

// New creates a Validator. The duplicate window comes from the loaded
// policy, so this triggers the one-time policy load.
func New(cfg Config) *Validator {
	pol := cfg.Policies.Load()
	return &Validator{
		policies: cfg.Policies,
		dups:     NewSuppressor(pol.DuplicateWindow(), cfg.MaxTrackedCalls),
		aligner:  cfg.Aligner,
		screener: cfg.Screener,
		logger:   cfg.Logger,
	}
}

// ValidateToolCall evaluates one proposed call and returns the verdict
// with a human-readable reason.
//
// Stages run in a fixed order and the first denial wins. Shape and
// authorization run before anything stateful, so a disallowed call never
// lands in the duplicate table. The duplicate slot IS consumed before
// alignment runs: a call later denied for unrelated intent still anchors
// the suppression window for its fingerprint, and an identical retry is
// reported as a duplicate rather than re-entering the chain.
func (v *Validator) ValidateToolCall(ctx context.Context, conf map[string]any, call ToolCall, messages []Message, phase Phase) Decision {
	// 1. Shape: a call with no name is malformed, nothing else to check.
	if call.Name == "" {
		return deny(StageShape, "malformed tool call")
	}

	// 2–3. Role resolution and permission.
	role := v.ResolveRole(conf)
	if !v.policies.Load().ToolAllowed(role, call.Name) {
		return v.denyAs(role, StagePermission,
			fmt.Sprintf("tool %q not allowed for role %q", call.Name, role))
	}

	// 4. Phase gate.
	if ok, reason := checkPhase(phase, call.Name); !ok {
		return v.denyAs(role, StagePhase, reason)
	}

	// 5. Duplicate suppression.
	dup, err := v.dups.IsDuplicate(call)
	if err != nil {
		if d, blocked := v.stageFailure(StageDuplicate, role, call.Name, err); blocked {
			return d
		}
	} else if dup {
		return v.denyAs(role, StageDuplicate, "duplicate tool call suppressed")
	}

	// 6. Intent alignment.
	aligned, err := Aligned(v.aligner, messages, call.Args)
	if err != nil {
		if d, blocked := v.stageFailure(StageIntent, role, call.Name, err); blocked {
			return d
		}
	} else if !aligned {
		return v.denyAs(role, StageIntent, "tool call appears unrelated to user intent")
	}

	// 7. Argument screening for registered tools.
	if v.screener != nil {
		ok, reason, err := v.screener.Screen(ctx, call.Name, call.Args)
		if err != nil {
			if d, blocked := v.stageFailure(StageArguments, role, call.Name, err); blocked {
				return d
			}
		} else if !ok {
			return v.denyAs(role, StageArguments, reason)
		}
	}

	return Decision{Allowed: true, Reason: "allowed", Stage: StageAllowed, Role: role}
}

// denyAs builds a denial carrying the resolved role.
func (v *Validator) denyAs(role, stage, reason string) Decision {
	d := deny(stage, reason)
	d.Role = role
	return d
}

// stageFailure logs a stage error and maps it to the stage's documented
// fallback. The second return is true when the failure must deny.
func (v *Validator) stageFailure(stage, role, toolName string, err error) (Decision, bool) {
	v.logger.Warn("validation stage error",
		zap.String("stage", stage),
		zap.String("tool", toolName),
		zap.Error(err),
	)
	if failModeFor(stage) == failClosed {
		return v.denyAs(role, stage, stage+" check failed"), true
	}
	return Decision{}, false
}
