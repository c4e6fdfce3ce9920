// Package iputil anonymizes client addresses. The same hash keys both the
// quota counters and the answer log, so the two can be correlated without
// either storing a raw address.
package iputil

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
