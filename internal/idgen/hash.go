// Package idgen mints the opaque local identifiers and resource-body
// version ids the storage engine hands out, using base36-encoded random
// bytes rather than a UUID library — short, and in the same character set
// the rest of the engine's identifiers use.
package idgen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of exactly length
// characters, zero-padding on the left or truncating the most significant
// digits as needed.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// localIDLength and versionIDLength are chosen so the id space stays
// comfortably ahead of birthday collisions for a single account's storage
// root: 16 base36 chars is ~82 bits of entropy.
const (
	localIDLength   = 16
	versionIDLength = 16
)

func randomBase36(length int) (string, error) {
	// numBytes is length*log2(36) rounded up, used as a byte count: the
	// random number carries several times more bits than length base36
	// digits need, and EncodeBase36 keeps only its low length digits.
	numBytes := (length*517 + 99) / 100 // log2(36) ≈ 5.17 bits/digit
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return EncodeBase36(buf, length), nil
}

// NewLocalID mints a fresh opaque local identifier for a Notebook, Note,
// Resource, Tag, or SavedSearch.
func NewLocalID() (string, error) {
	return randomBase36(localIDLength)
}

// NewVersionID mints a fresh resource-body version id, used to name a
// content-addressed file under Resources/{data,alternateData}/.
func NewVersionID() (string, error) {
	return randomBase36(versionIDLength)
}
