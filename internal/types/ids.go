package types

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// hashPattern matches a lowercase or uppercase hex SHA-256 digest.
var hashPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// NewRecordID derives a new primary-key value for a record in the named group.
// SHA-256 over nanosecond time, the salt and a random UUID: unique without a
// round trip to the store. Panics only if the system RNG fails (uuid.Must).
func NewRecordID(salt string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	h.Write([]byte{0x00})
	h.Write([]byte(salt))
	h.Write([]byte{0x00})
	h.Write([]byte(uuid.Must(uuid.NewRandom()).String()))
	return hex.EncodeToString(h.Sum(nil))
}

// IsHash reports whether s is a 64-character hex digest.
func IsHash(s string) bool {
	return hashPattern.MatchString(s)
}
