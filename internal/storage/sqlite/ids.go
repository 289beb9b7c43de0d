package sqlite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/taskmesh/taskmesh/internal/types"
)

// maxIDAttempts bounds collision regeneration before giving up.
const maxIDAttempts = 16

// isValidTaskID reports whether id has the shape of a generated task id:
// exactly eight lowercase hex characters.
func isValidTaskID(id string) bool {
	if len(id) != 8 {
		return false
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// generateTaskID produces a unique 8-hex-char id from 4 random bytes,
// regenerating on collision up to maxIDAttempts. Deleted ids can recur in
// principle; the random source makes reuse statistically irrelevant.
func generateTaskID(ctx context.Context, q dbtx) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		candidate := hex.EncodeToString(buf[:])

		var count int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, candidate).Scan(&count); err != nil {
			return "", fmt.Errorf("failed to check for id collision: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", types.ErrIDExhausted
}
