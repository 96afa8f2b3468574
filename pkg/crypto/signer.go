package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/lightpool/lightpool-go/pkg/types"
)

// Signer holds an Ed25519 keypair and the account address derived from
// it. Addresses are the first 32 bytes of the SHA-512 of the public
// key.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr types.Address
}

func GenerateKey() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Signer{priv: priv, pub: pub, addr: DeriveAddress(pub)}, nil
}

// FromSeed rebuilds a signer from its 32-byte seed.
func FromSeed(seed [32]byte) *Signer {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{priv: priv, pub: pub, addr: DeriveAddress(pub)}
}

// FromSeedHex rebuilds a signer from a hex seed, with or without the
// 0x prefix.
func FromSeedHex(s string) (*Signer, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(b), ed25519.SeedSize)
	}
	var seed [32]byte
	copy(seed[:], b)
	return FromSeed(seed), nil
}

func (s *Signer) Address() types.Address { return s.addr }

// PublicKey returns the raw 32-byte Ed25519 public key.
func (s *Signer) PublicKey() []byte {
	out := make([]byte, len(s.pub))
	copy(out, s.pub)
	return out
}

func (s *Signer) Seed() [32]byte {
	var seed [32]byte
	copy(seed[:], s.priv.Seed())
	return seed
}

func (s *Signer) SeedHex() string {
	return "0x" + hex.EncodeToString(s.priv.Seed())
}

// Sign signs the raw message (Ed25519 hashes internally; no pre-hash).
func (s *Signer) Sign(msg []byte) types.Signature {
	raw := ed25519.Sign(s.priv, msg)
	sig, err := types.SignatureFromBytes(raw)
	if err != nil {
		panic(fmt.Sprintf("ed25519 produced %d-byte signature", len(raw)))
	}
	return sig
}

// Envelope wraps a signed transaction for submission, attaching the
// digest and this signer's public key.
func (s *Signer) Envelope(st types.SignedTransaction) types.TxEnvelope {
	return types.TxEnvelope{
		Signed:     st,
		Digest:     st.Digest(),
		PublicKeys: []types.Bytes{s.PublicKey()},
	}
}

// DeriveAddress maps an Ed25519 public key to its account address.
func DeriveAddress(pub []byte) types.Address {
	var addr types.Address
	sum := sha512.Sum512(pub)
	copy(addr[:], sum[:32])
	return addr
}

// Verify checks sig over msg under pub.
func Verify(pub []byte, msg []byte, sig types.Signature) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig.Bytes())
}

// VerifyEnvelope runs the node's admission checks: the digest matches
// the transaction, every signature verifies under its public key, and
// at least one key derives the sender address.
func VerifyEnvelope(env types.TxEnvelope) error {
	tx := env.Signed.Transaction
	if got := tx.ComputeDigest(); got != env.Digest {
		return fmt.Errorf("digest mismatch: computed %s, envelope %s", got, env.Digest)
	}
	if len(env.Signed.Signatures) == 0 {
		return fmt.Errorf("no signatures")
	}
	if len(env.PublicKeys) != len(env.Signed.Signatures) {
		return fmt.Errorf("%d public keys for %d signatures",
			len(env.PublicKeys), len(env.Signed.Signatures))
	}

	msg := tx.SigningBytes()
	senderKeyFound := false
	for i, sig := range env.Signed.Signatures {
		pub := env.PublicKeys[i]
		if !Verify(pub, msg, sig) {
			return fmt.Errorf("signature %d does not verify", i)
		}
		if DeriveAddress(pub) == tx.Sender {
			senderKeyFound = true
		}
	}
	if !senderKeyFound {
		return fmt.Errorf("no signature from sender %s", tx.Sender)
	}
	return nil
}
