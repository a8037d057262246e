package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// PayrollEvent is one link of a cycle's tamper-evident history.
type PayrollEvent struct {
	CycleID   string          `json:"cycle_id"`
	CycleSeq  int             `json:"cycle_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// EventTime truncates t to the precision Postgres stores so a hash computed
// at write time can be recomputed from the stored row.
func EventTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func ComputePayrollEventHash(prevHash, cycleID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, cycleID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyChain recomputes every hash in order. It returns the sequence number
// of the first broken link, or 0 when the chain is intact.
func VerifyChain(events []PayrollEvent) (bool, int) {
	prev := ""
	for i, event := range events {
		if event.CycleSeq != i+1 || event.PrevHash != prev {
			return false, event.CycleSeq
		}
		want := ComputePayrollEventHash(prev, event.CycleID, event.Type, event.Payload, event.CreatedAt, event.CycleSeq)
		if want != event.Hash {
			return false, event.CycleSeq
		}
		prev = event.Hash
	}
	return true, 0
}
