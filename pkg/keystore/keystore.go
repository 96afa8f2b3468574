// Package keystore stores Ed25519 seeds on disk, sealed with a
// passphrase. The key derivation is argon2id and the cipher is
// ChaCha20-Poly1305; one JSON file per address.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// argon2id parameters. 64 MiB is deliberate; key files are opened
// rarely and offline guessing should hurt.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

type keyFile struct {
	Address string     `json:"address"`
	Crypto  cryptoBlob `json:"crypto"`
}

type cryptoBlob struct {
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	Time       uint32 `json:"time"`
	MemoryKiB  uint32 `json:"memory_kib"`
	Threads    uint8  `json:"threads"`
	Cipher     string `json:"cipher"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(addr types.Address) string {
	return filepath.Join(s.dir, strings.TrimPrefix(addr.String(), "0x")+".json")
}

// Save seals the signer's seed under the passphrase and writes its key
// file, overwriting any previous file for the same address.
func (s *Store) Save(signer *crypto.Signer, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to draw salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to draw nonce: %w", err)
	}
	seed := signer.Seed()
	sealed := aead.Seal(nil, nonce, seed[:], nil)

	kf := keyFile{
		Address: signer.Address().String(),
		Crypto: cryptoBlob{
			KDF:        "argon2id",
			Salt:       hex.EncodeToString(salt),
			Time:       kdfTime,
			MemoryKiB:  kdfMemory,
			Threads:    kdfThreads,
			Cipher:     "chacha20poly1305",
			Nonce:      hex.EncodeToString(nonce),
			Ciphertext: hex.EncodeToString(sealed),
		},
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode key file: %w", err)
	}

	path := s.path(signer.Address())
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	return path, nil
}

// Load opens the key file for addr and unseals the signer. A wrong
// passphrase fails the AEAD open, never yields a wrong key.
func (s *Store) Load(addr types.Address, passphrase string) (*crypto.Signer, error) {
	data, err := os.ReadFile(s.path(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if kf.Crypto.KDF != "argon2id" || kf.Crypto.Cipher != "chacha20poly1305" {
		return nil, fmt.Errorf("unsupported key file: kdf %q cipher %q", kf.Crypto.KDF, kf.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(kf.Crypto.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse salt: %w", err)
	}
	nonce, err := hex.DecodeString(kf.Crypto.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nonce: %w", err)
	}
	sealed, err := hex.DecodeString(kf.Crypto.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ciphertext: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, kf.Crypto.Time, kf.Crypto.MemoryKiB, kf.Crypto.Threads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	seedBytes, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal key (wrong passphrase?): %w", err)
	}
	if len(seedBytes) != 32 {
		return nil, fmt.Errorf("unsealed seed is %d bytes, want 32", len(seedBytes))
	}

	var seed [32]byte
	copy(seed[:], seedBytes)
	signer := crypto.FromSeed(seed)
	if signer.Address() != addr {
		return nil, fmt.Errorf("key file address %s does not match derived %s", addr, signer.Address())
	}
	return signer, nil
}

// List returns the addresses with key files in the store.
func (s *Store) List() ([]types.Address, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore dir: %w", err)
	}
	var addrs []types.Address
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		addr, err := types.ParseAddress(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // foreign file
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func (s *Store) Delete(addr types.Address) error {
	if err := os.Remove(s.path(addr)); err != nil {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}
