package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"sort"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidKeySize    = errors.New("invalid key size")
	ErrNoKeys            = errors.New("no encryption keys configured")
	ErrUnknownKeyVersion = errors.New("unknown key version")
	ErrEncryption        = errors.New("encryption failed")
	ErrDecryption        = errors.New("decryption failed")
)

const deriveIterations = 100_000

// Encryptor provides authenticated encryption of sensitive field values.
// Ciphertext is non-deterministic: every call draws a fresh nonce, so equal
// plaintexts never compare equal on the wire.
type Encryptor interface {
	Encrypt(plaintext []byte) (EncryptedValue, error)
	Decrypt(value EncryptedValue) ([]byte, error)
	CurrentVersion() int
}

type aesEncryptor struct {
	keys    map[int]cipher.AEAD
	current int
}

// NewAESEncryptor creates an AES-GCM encryptor over a set of versioned
// 32-byte keys. New ciphertext is always produced with the highest version;
// older versions remain decryptable until rotated out.
func NewAESEncryptor(keys map[int][]byte) (Encryptor, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	aeads := make(map[int]cipher.AEAD, len(keys))
	current := 0
	for version, key := range keys {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, ErrInvalidKeySize
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, ErrEncryption
		}
		aeads[version] = gcm
		if version > current {
			current = version
		}
	}

	return &aesEncryptor{keys: aeads, current: current}, nil
}

func (a *aesEncryptor) CurrentVersion() int {
	return a.current
}

func (a *aesEncryptor) Encrypt(plaintext []byte) (EncryptedValue, error) {
	gcm := a.keys[a.current]

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedValue{}, ErrEncryption
	}

	return EncryptedValue{
		KeyVersion: a.current,
		Ciphertext: gcm.Seal(nonce, nonce, plaintext, nil),
	}, nil
}

func (a *aesEncryptor) Decrypt(value EncryptedValue) ([]byte, error) {
	gcm, ok := a.keys[value.KeyVersion]
	if !ok {
		return nil, ErrUnknownKeyVersion
	}

	nonceSize := gcm.NonceSize()
	if len(value.Ciphertext) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := value.Ciphertext[:nonceSize], value.Ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failure: tampered or corrupted ciphertext.
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// DeriveKeys expands passphrases into 32-byte AES keys via PBKDF2-SHA256.
// The same passphrase, salt and version always yield the same key, so a
// deployment can be restarted without losing decryptability.
func DeriveKeys(passphrases map[int]string, salt []byte) map[int][]byte {
	versions := make([]int, 0, len(passphrases))
	for v := range passphrases {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	keys := make(map[int][]byte, len(passphrases))
	for _, v := range versions {
		keys[v] = pbkdf2.Key([]byte(passphrases[v]), salt, deriveIterations, 32, sha256.New)
	}
	return keys
}
