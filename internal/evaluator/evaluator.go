package evaluator

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// bucketSpace is the number of rollout buckets (0.01% granularity).
const bucketSpace = 10000

// Evaluator decides whether a flag is on for a target.
type Evaluator interface {
	// Evaluate resolves the flag for targetID. An empty targetID gets a
	// fresh random identity, so the result is not reproducible.
	Evaluate(flag domain.Flag, targetID string) bool
}

// Rollout implements percentage rollouts with SHA-256 bucketing.
type Rollout struct {
	newTargetID func() string
}

// New creates a rollout evaluator.
func New() *Rollout {
	return &Rollout{newTargetID: randomTargetID}
}

// Evaluate evaluates a flag locally
func (r *Rollout) Evaluate(flag domain.Flag, targetID string) bool {
	if !flag.IsEnabled {
		return false
	}

	if !flag.HasRollout() {
		return flag.IsEnabled
	}

	if targetID == "" {
		targetID = r.newTargetID()
	}

	bucket := Bucket(targetID, flag.Key, *flag.RolloutSeed)
	threshold := *flag.RolloutPercentage * 100

	return float64(bucket) < threshold
}

// Bucket maps a target onto [0, 9999] for the given flag and seed.
func Bucket(targetID, flagKey, seed string) int {
	sum := sha256.Sum256([]byte(targetID + "-" + flagKey + "-" + seed))
	return (int(sum[0])*256 + int(sum[1])) % bucketSpace
}

// randomTargetID returns 16 random bytes, hex encoded.
func randomTargetID() string {
	b := make([]byte, 16)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
