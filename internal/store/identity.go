package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Yash-Prakash1/connector/internal/model"
)

// localPrefix marks rows learned on this machine, keeping them apart from
// pool-assigned ids so a cache refresh can never clobber learned stats.
const localPrefix = "local_"

// PatternID derives the deterministic identity of a resolution pattern from
// its goal, OS, and ordered normalized steps. Repeated occurrences of the
// same recipe accumulate onto the same record.
func PatternID(goal string, os model.OS, steps []model.NormalizedStep) string {
	key := struct {
		Goal  string                 `json:"goal"`
		OS    model.OS               `json:"os"`
		Steps []model.NormalizedStep `json:"steps"`
	}{goal, os, steps}
	// encoding/json sorts map keys, so Detail maps serialize stably.
	serialized, _ := json.Marshal(key)
	sum := sha256.Sum256(serialized)
	return localPrefix + hex.EncodeToString(sum[:])[:16]
}

// ResolutionID derives the identity of an error resolution from the error
// fingerprint and the action category that resolved it.
func ResolutionID(errorFingerprint, action string) string {
	sum := sha256.Sum256([]byte(errorFingerprint + ":" + action))
	return localPrefix + hex.EncodeToString(sum[:])[:16]
}
