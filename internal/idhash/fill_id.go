package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(run_id|order_id|timestamp|seq)
// seq disambiguates several fills of one order at one timestamp.
// Returns hex-encoded hash (64 characters).
func ComputeFillID(
	runID string,
	orderID string,
	timestamp int64,
	seq int,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		runID,
		orderID,
		timestamp,
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
