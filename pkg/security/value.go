package security

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const encryptedPrefix = "enc:v"

// EncryptedValue is opaque ciphertext plus the key version needed to decrypt
// it later. It is the only form in which a protected field value may leave
// the service for an under-privileged caller.
type EncryptedValue struct {
	KeyVersion int    `json:"key_version"`
	Ciphertext []byte `json:"ciphertext"`
}

// String renders the compact wire form "enc:v<version>:<base64>" used when a
// result cell is redacted in place.
func (v EncryptedValue) String() string {
	return fmt.Sprintf("%s%d:%s", encryptedPrefix, v.KeyVersion,
		base64.RawURLEncoding.EncodeToString(v.Ciphertext))
}

// IsEncryptedValue reports whether s carries the compact wire form.
func IsEncryptedValue(s string) bool {
	return strings.HasPrefix(s, encryptedPrefix)
}

// ParseEncryptedValue parses the compact wire form back into a value.
func ParseEncryptedValue(s string) (EncryptedValue, error) {
	rest, ok := strings.CutPrefix(s, encryptedPrefix)
	if !ok {
		return EncryptedValue{}, ErrDecryption
	}

	versionStr, payload, ok := strings.Cut(rest, ":")
	if !ok {
		return EncryptedValue{}, ErrDecryption
	}

	version, err := strconv.Atoi(versionStr)
	if err != nil || version <= 0 {
		return EncryptedValue{}, ErrDecryption
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return EncryptedValue{}, ErrDecryption
	}

	return EncryptedValue{KeyVersion: version, Ciphertext: ciphertext}, nil
}
