package ir

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// MarshalCanonical produces RFC 8785 (JCS) canonical JSON.
// This is the only serialization used for digests and golden traces:
// object keys are sorted, whitespace is removed and numbers are rendered in
// their shortest round-trip form.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical: transform: %w", err)
	}
	return out, nil
}
