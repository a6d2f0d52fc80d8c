package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrUnsealFailed is returned for a wrong passphrase or a tampered file.
	ErrUnsealFailed = errors.New("failed to unseal secrets")

	ErrEmptyPassphrase = errors.New("passphrase is required")
)

const (
	sealVersion = 1

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltBytes    = 16
)

// sealedFile is the on-disk form of a sealed secrets file.
type sealedFile struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Data    string `json:"data"`
}

// DeriveKey stretches passphrase into an XChaCha20-Poly1305 key with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Seal encrypts secrets under passphrase.
func Seal(passphrase string, secrets Secrets) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode secrets: %w", err)
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.MarshalIndent(sealedFile{
		Version: sealVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
		Data:    base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, nil)),
	}, "", "  ")
}

// Unseal decrypts data sealed by Seal.
func Unseal(passphrase string, data []byte) (Secrets, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	var f sealedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	if f.Version != sealVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrUnsealFailed, f.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrUnsealFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrUnsealFailed, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrUnsealFailed, err)
	}

	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length", ErrUnsealFailed)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnsealFailed
	}

	secrets := Secrets{}
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	return secrets, nil
}

// WriteSealed seals secrets into path, readable by the owner only.
func WriteSealed(path, passphrase string, secrets Secrets) error {
	data, err := Seal(passphrase, secrets)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write sealed secrets: %w", err)
	}
	return nil
}

// ReadSealed opens the sealed secrets file at path.
func ReadSealed(path, passphrase string) (Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sealed secrets: %w", err)
	}
	return Unseal(passphrase, data)
}
