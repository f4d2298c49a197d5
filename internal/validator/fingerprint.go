package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives the deterministic duplicate-detection key for a
// call. encoding/json marshals map keys in sorted order, so two calls
// whose args hold the same key/value pairs fingerprint identically no
// matter the insertion order, at any nesting depth.
func Fingerprint(call ToolCall) (string, error) {
	argsJSON, err := json.Marshal(call.Args)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(call.Name))
	h.Write([]byte{0})
	h.Write(argsJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}
