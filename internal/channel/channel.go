// Package channel derives deterministic chat-channel identifiers from
// participant pairs. Both sides of a match compute the same id locally,
// so no channel registry is needed.
package channel

import (
	"hash/fnv"
	"strconv"
)

// Prefix namespaces every derived id so channel ids are recognizable in
// logs and cannot collide with other key spaces.
const Prefix = "chat-"

const separator = "_"

// Derive maps a pair of user identifiers to a channel id. The pair is
// sorted lexicographically before hashing, so Derive(a, b) == Derive(b, a).
// FNV-1a 32-bit keeps ids short; collisions are tolerable because the set
// of concurrent pairs per deployment is small and a collision only mixes
// two conversation views, it cannot corrupt stored messages.
func Derive(a, b string) string {
	if b < a {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte(separator))
	h.Write([]byte(b))
	return Prefix + strconv.FormatUint(uint64(h.Sum32()), 36)
}

// DeriveUsers is Derive over numeric user ids.
func DeriveUsers(a, b uint) string {
	return Derive(strconv.FormatUint(uint64(a), 10), strconv.FormatUint(uint64(b), 10))
}
