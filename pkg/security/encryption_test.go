package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEncryptor(t *testing.T) Encryptor {
	t.Helper()
	keys := DeriveKeys(map[int]string{1: "unit-test-passphrase"}, []byte("unit-test-salt"))
	enc, err := NewAESEncryptor(keys)
	require.NoError(t, err)
	return enc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := testEncryptor(t)

	plaintexts := []string{
		"sensitive patient information",
		"123-45-6789",
		"",
		"unicode: héllo wörld",
	}

	for _, p := range plaintexts {
		value, err := enc.Encrypt([]byte(p))
		require.NoError(t, err)

		decrypted, err := enc.Decrypt(value)
		require.NoError(t, err)
		assert.Equal(t, p, string(decrypted))
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc := testEncryptor(t)

	first, err := enc.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	second, err := enc.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestDecryptDetectsTampering(t *testing.T) {
	enc := testEncryptor(t)

	value, err := enc.Encrypt([]byte("tamper target"))
	require.NoError(t, err)

	// Flipping any single bit must fail authentication, never yield a
	// different plaintext silently.
	for i := range value.Ciphertext {
		tampered := EncryptedValue{
			KeyVersion: value.KeyVersion,
			Ciphertext: append([]byte(nil), value.Ciphertext...),
		}
		tampered.Ciphertext[i] ^= 0x01

		_, err := enc.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrDecryption, "bit flip at byte %d not detected", i)
	}
}

func TestDecryptUnknownKeyVersion(t *testing.T) {
	enc := testEncryptor(t)

	value, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)

	value.KeyVersion = 99
	_, err = enc.Decrypt(value)
	assert.ErrorIs(t, err, ErrUnknownKeyVersion)
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	enc := testEncryptor(t)

	_, err := enc.Decrypt(EncryptedValue{KeyVersion: 1, Ciphertext: []byte{0x01, 0x02}})
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestKeyRotationDecryptsOldVersions(t *testing.T) {
	salt := []byte("unit-test-salt")
	v1 := DeriveKeys(map[int]string{1: "old-passphrase"}, salt)
	old, err := NewAESEncryptor(v1)
	require.NoError(t, err)

	value, err := old.Encrypt([]byte("written under v1"))
	require.NoError(t, err)

	rotated, err := NewAESEncryptor(DeriveKeys(map[int]string{
		1: "old-passphrase",
		2: "new-passphrase",
	}, salt))
	require.NoError(t, err)

	assert.Equal(t, 2, rotated.CurrentVersion())

	decrypted, err := rotated.Decrypt(value)
	require.NoError(t, err)
	assert.Equal(t, "written under v1", string(decrypted))

	fresh, err := rotated.Encrypt([]byte("written under v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.KeyVersion)
}

func TestEncryptedValueWireForm(t *testing.T) {
	enc := testEncryptor(t)

	value, err := enc.Encrypt([]byte("round trip through wire form"))
	require.NoError(t, err)

	wire := value.String()
	assert.True(t, IsEncryptedValue(wire))

	parsed, err := ParseEncryptedValue(wire)
	require.NoError(t, err)
	assert.Equal(t, value, parsed)

	decrypted, err := enc.Decrypt(parsed)
	require.NoError(t, err)
	assert.Equal(t, "round trip through wire form", string(decrypted))
}

func TestParseEncryptedValueRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"plaintext",
		"enc:v:payload",
		"enc:v0:payload",
		"enc:vX:payload",
		"enc:v1",
		"enc:v1:!!!not-base64!!!",
	} {
		_, err := ParseEncryptedValue(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDeriveKeysDeterministic(t *testing.T) {
	salt := []byte("fixed-salt")
	a := DeriveKeys(map[int]string{1: "pass"}, salt)
	b := DeriveKeys(map[int]string{1: "pass"}, salt)
	assert.Equal(t, a, b)

	c := DeriveKeys(map[int]string{1: "other"}, salt)
	assert.NotEqual(t, a[1], c[1])
}

func TestHashQueryDeterministic(t *testing.T) {
	h1 := HashQuery("SELECT COUNT(*) FROM patients")
	h2 := HashQuery("SELECT COUNT(*) FROM patients")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashQuery("SELECT 1"))
}
