package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rewind/internal/ir"
)

// marshalDetail converts outcome detail to canonical JSON TEXT for storage.
// Empty detail is stored as "{}".
func marshalDetail(detail []byte) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	v, err := ir.Parse(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// snapshotMode extracts the top-level "mode" of a JSON record snapshot for
// listing. Payloads from other codecs report "".
func snapshotMode(data []byte) string {
	var head struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.Mode
}
