package validator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AlignerConfig tunes the intent-alignment heuristic. The heuristic is a
// coarse lexical check: tokens shorter than or equal to MinTokenLen are
// ignored, and at least MinOverlap shared tokens between user text and
// call arguments count as aligned.
type AlignerConfig struct {
	MinTokenLen int // ignore tokens with len <= this (default 3)
	MinOverlap  int // shared tokens required when both sets are non-empty (default 1)
}

func (c AlignerConfig) withDefaults() AlignerConfig {
	if c.MinTokenLen <= 0 {
		c.MinTokenLen = 3
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = 1
	}
	return c
}

// Aligned reports whether the call arguments are topically related to the
// user-authored messages. With no messages, or when either token set is
// empty, there is no signal to judge by and the call is treated as
// aligned; the heuristic only flags a confident disjoint finding.
func Aligned(cfg AlignerConfig, messages []Message, args map[string]any) (bool, error) {
	cfg = cfg.withDefaults()

	if len(messages) == 0 {
		return true, nil
	}

	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content())
		sb.WriteByte(' ')
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return true, fmt.Errorf("Aligned: %w", err)
	}

	userTokens := tokenize(sb.String(), cfg.MinTokenLen)
	argTokens := tokenize(string(argsJSON), cfg.MinTokenLen)

	if len(userTokens) == 0 || len(argTokens) == 0 {
		return true, nil
	}

	overlap := 0
	for t := range argTokens {
		if userTokens[t] {
			overlap++
			if overlap >= cfg.MinOverlap {
				return true, nil
			}
		}
	}
	return false, nil
}

// tokenize splits on whitespace, case-folds, and keeps tokens longer than
// minLen characters.
func tokenize(s string, minLen int) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		if len(t) > minLen {
			tokens[strings.ToLower(t)] = true
		}
	}
	return tokens
}
