// Package file stores vehicle records as JSON files, optionally sealed with
// AES-256-GCM.
package file

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// KeySize is the length of an AES-256 key.
const KeySize = 32

// envelope is the on-disk shape of a sealed record.
type envelope struct {
	Encrypted []byte `json:"encrypted"`
}

// Store implements ports.RunStore on the local filesystem, one
// <vehicle>.json file per record in Dir.
type Store struct {
	Dir       string
	activeKey []byte
	fallback  [][]byte
}

// Option configures the Store.
type Option func(*Store) error

// WithKeys seals records with active and also accepts records sealed with any
// of the fallback keys, so keys can be rotated without downtime.
func WithKeys(active []byte, fallback ...[]byte) Option {
	return func(s *Store) error {
		if len(active) != KeySize {
			return fmt.Errorf("active key must be %d bytes, got %d", KeySize, len(active))
		}
		for i, k := range fallback {
			if len(k) != KeySize {
				return fmt.Errorf("fallback key %d must be %d bytes, got %d", i, KeySize, len(k))
			}
		}
		s.activeKey = active
		s.fallback = fallback
		return nil
	}
}

// New creates a Store in dir (default ".autonoma/runs").
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(".autonoma", "runs")
	}
	s := &Store{Dir: dir}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Encrypted reports whether records are sealed.
func (s *Store) Encrypted() bool { return s.activeKey != nil }

func (s *Store) path(vehicleID string) (string, error) {
	if vehicleID == "" {
		return "", errors.New("vehicleID cannot be empty")
	}
	if strings.ContainsAny(vehicleID, `/\`) || vehicleID == "." || vehicleID == ".." {
		return "", fmt.Errorf("invalid vehicleID %q", vehicleID)
	}
	return filepath.Join(s.Dir, vehicleID+".json"), nil
}

// Save writes the record atomically: temp file, fsync, rename.
func (s *Store) Save(_ context.Context, vehicleID string, state *domain.State) error {
	destPath, err := s.path(vehicleID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("failed to ensure run directory: %w", err)
	}

	data, err := s.encode(state)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(s.Dir, "tmp-"+vehicleID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace run file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the record of vehicleID.
func (s *Store) Load(_ context.Context, vehicleID string) (*domain.State, error) {
	p, err := s.path(vehicleID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return s.decode(data)
}

// Delete removes the record file. Missing records are not an error.
func (s *Store) Delete(_ context.Context, vehicleID string) error {
	p, err := s.path(vehicleID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// List returns the vehicles with a stored record.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *Store) encode(state *domain.State) ([]byte, error) {
	plain, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	if !s.Encrypted() {
		return plain, nil
	}
	sealed, err := seal(plain, s.activeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt run: %w", err)
	}
	return json.Marshal(envelope{Encrypted: sealed})
}

func (s *Store) decode(data []byte) (*domain.State, error) {
	if s.Encrypted() {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || len(env.Encrypted) == 0 {
			// Plain records are refused once encryption is on.
			return nil, errors.New("run file is missing its encrypted envelope")
		}
		plain, err := openWithRotation(env.Encrypted, s.activeKey, s.fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt run: %w", err)
		}
		data = plain
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &state, nil
}

func seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openWithRotation(ciphertext, active []byte, fallback [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{active}, fallback...) {
		if plain, err := open(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func open(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
