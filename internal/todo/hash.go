package todo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainState = "docket/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateID computes the content-addressed id for a previous-state snapshot.
// Identical (todo, prompting change, state) triples produce the same id,
// so a double-snapshot before the same mutation collapses to one record.
//
// json.Marshal of a struct emits fields in declaration order, which keeps
// the serialization deterministic without a canonicalization pass.
func StateID(todoID, changeLogID string, state Todo) (string, error) {
	// Citations are engine-populated decoration, not snapshot state.
	state.Citations = nil

	payload := struct {
		TodoID      string `json:"todo_id"`
		ChangeLogID string `json:"changelog_id"`
		State       Todo   `json:"state"`
	}{todoID, changeLogID, state}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("state id: marshal: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}
