package scorer

import (
	"crypto/sha256"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ConfigHash returns a SHA-256 hash of the scoring config for reproducibility.
func ConfigHash(cfg interface{}) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}

// MarshalSnapshot encodes a result for storage alongside its dossier.
func MarshalSnapshot(r *Result) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: marshal snapshot")
	}
	return data, nil
}

// UnmarshalSnapshot decodes a stored result.
func UnmarshalSnapshot(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "scorer: unmarshal snapshot")
	}
	return &r, nil
}
