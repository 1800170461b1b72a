package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pluginhub/pluginhub/internal/plugins"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters for deriving the vault key
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	keyLen     = 32
	saltLen    = 16
)

// vaultFile is the on-disk vault envelope
type vaultFile struct {
	Salt string `json:"salt"`
	Data string `json:"data"`
}

// VaultProvider serves credentials from an AES-256-GCM encrypted file
type VaultProvider struct {
	name    string
	entries map[string]Credential
}

// OpenVault decrypts the vault at path with passphrase
func OpenVault(name, path, passphrase string) (*VaultProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	entries, err := Unseal(raw, passphrase)
	if err != nil {
		return nil, err
	}

	return &VaultProvider{name: name, entries: entries}, nil
}

func (p *VaultProvider) Name() string { return p.name }

func (p *VaultProvider) Supports(src plugins.Source) bool {
	_, ok := p.entries[src.Host()]
	return ok
}

func (p *VaultProvider) Credential(_ context.Context, src plugins.Source) (*Credential, error) {
	cred, ok := p.entries[src.Host()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, src)
	}
	return &cred, nil
}

// Seal encrypts host -> credential entries into a vault file body
func Seal(entries map[string]Credential, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase must not be empty")
	}

	normalized := make(map[string]Credential, len(entries))
	for host, cred := range entries {
		normalized[strings.ToLower(host)] = cred
	}

	plaintext, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vault entries: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	// Generate nonce
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Encrypt and prepend nonce
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return json.MarshalIndent(vaultFile{
		Salt: base64.StdEncoding.EncodeToString(salt),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
}

// Unseal decrypts a vault file body
func Unseal(raw []byte, passphrase string) (map[string]Credential, error) {
	var file vaultFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	// Extract nonce and ciphertext
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	var entries map[string]Credential
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse vault entries: %w", err)
	}
	return entries, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, keyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
