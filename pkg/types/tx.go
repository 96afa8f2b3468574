package types

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// Defaults applied by the transaction builder.
const (
	DefaultGasBudget uint64 = 1_000_000
	DefaultGasPrice  uint64 = 1
	NoExpiration     uint64 = math.MaxUint64
)

type Transaction struct {
	Sender     Address  `json:"sender"`
	Nonce      uint64   `json:"nonce"`
	GasBudget  uint64   `json:"gas_budget"`
	GasPrice   uint64   `json:"gas_price"`
	Expiration uint64   `json:"expiration"`
	Actions    []Action `json:"actions"`
}

func (t Transaction) EncodeTo(w *bincode.Writer) {
	t.Sender.EncodeTo(w)
	w.U64(t.Nonce)
	w.U64(t.GasBudget)
	w.U64(t.GasPrice)
	w.U64(t.Expiration)
	w.Seq(len(t.Actions))
	for _, a := range t.Actions {
		a.EncodeTo(w)
	}
}

func (t Transaction) Encode() []byte {
	w := bincode.NewWriter()
	t.EncodeTo(w)
	return w.Finish()
}

func (t *Transaction) DecodeFrom(r *bincode.Reader) error {
	if err := t.Sender.DecodeFrom(r); err != nil {
		return fmt.Errorf("tx sender: %w", err)
	}
	var err error
	if t.Nonce, err = r.U64(); err != nil {
		return fmt.Errorf("tx nonce: %w", err)
	}
	if t.GasBudget, err = r.U64(); err != nil {
		return fmt.Errorf("tx gas budget: %w", err)
	}
	if t.GasPrice, err = r.U64(); err != nil {
		return fmt.Errorf("tx gas price: %w", err)
	}
	if t.Expiration, err = r.U64(); err != nil {
		return fmt.Errorf("tx expiration: %w", err)
	}
	n, err := r.Seq()
	if err != nil {
		return fmt.Errorf("tx actions: %w", err)
	}
	actions := make([]Action, n)
	for i := range actions {
		if err := actions[i].DecodeFrom(r); err != nil {
			return fmt.Errorf("tx action %d: %w", i, err)
		}
	}
	t.Actions = actions
	return nil
}

func DecodeTransaction(b []byte) (Transaction, error) {
	var t Transaction
	if err := t.DecodeFrom(bincode.NewReader(b)); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// SigningBytes is the byte string signatures commit to: the
// transaction's bincode encoding.
func (t Transaction) SigningBytes() []byte { return t.Encode() }

// ComputeDigest is the transaction id: SHA-256 of the signing bytes.
func (t Transaction) ComputeDigest() Digest {
	return Digest(sha256.Sum256(t.SigningBytes()))
}

// Signature is a 64-byte Ed25519 signature, split into two halves in
// the JSON wire form.
type Signature struct {
	Part1 [32]byte
	Part2 [32]byte
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != 64 {
		return s, fmt.Errorf("signature from bytes: got %d bytes, want 64", len(b))
	}
	copy(s.Part1[:], b[:32])
	copy(s.Part2[:], b[32:])
	return s, nil
}

func (s Signature) Bytes() []byte {
	b := make([]byte, 64)
	copy(b[:32], s.Part1[:])
	copy(b[32:], s.Part2[:])
	return b
}

func (s Signature) EncodeTo(w *bincode.Writer) {
	w.Raw(s.Part1[:])
	w.Raw(s.Part2[:])
}

func (s *Signature) DecodeFrom(r *bincode.Reader) error {
	p, err := r.Raw(64)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	copy(s.Part1[:], p[:32])
	copy(s.Part2[:], p[32:])
	return nil
}

type signatureWire struct {
	Part1 Bytes `json:"part1"`
	Part2 Bytes `json:"part2"`
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureWire{Part1: s.Part1[:], Part2: s.Part2[:]})
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var wire signatureWire
	if err := jsonUnmarshalStrict(data, &wire); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if len(wire.Part1) != 32 || len(wire.Part2) != 32 {
		return fmt.Errorf("signature: parts %d+%d bytes, want 32+32: %w",
			len(wire.Part1), len(wire.Part2), ErrMalformedText)
	}
	copy(s.Part1[:], wire.Part1)
	copy(s.Part2[:], wire.Part2)
	return nil
}

type SignedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Signatures  []Signature `json:"signatures"`
}

func (st SignedTransaction) EncodeTo(w *bincode.Writer) {
	st.Transaction.EncodeTo(w)
	w.Seq(len(st.Signatures))
	for _, s := range st.Signatures {
		s.EncodeTo(w)
	}
}

func (st SignedTransaction) Encode() []byte {
	w := bincode.NewWriter()
	st.EncodeTo(w)
	return w.Finish()
}

func (st *SignedTransaction) DecodeFrom(r *bincode.Reader) error {
	if err := st.Transaction.DecodeFrom(r); err != nil {
		return err
	}
	n, err := r.Seq()
	if err != nil {
		return fmt.Errorf("tx signatures: %w", err)
	}
	sigs := make([]Signature, n)
	for i := range sigs {
		if err := sigs[i].DecodeFrom(r); err != nil {
			return fmt.Errorf("tx signature %d: %w", i, err)
		}
	}
	st.Signatures = sigs
	return nil
}

func DecodeSignedTransaction(b []byte) (SignedTransaction, error) {
	var st SignedTransaction
	if err := st.DecodeFrom(bincode.NewReader(b)); err != nil {
		return SignedTransaction{}, err
	}
	return st, nil
}

func (st SignedTransaction) Digest() Digest {
	return st.Transaction.ComputeDigest()
}

// VerifiedTransaction pairs a signed transaction with its digest after
// signature checks passed.
type VerifiedTransaction struct {
	Signed SignedTransaction `json:"signed_transaction"`
	Digest Digest            `json:"digest"`
}

// TxEnvelope is the submitTransaction payload. Ed25519 signatures do
// not reveal their public key, so the envelope carries the signers'
// keys alongside; the node checks them against the sender address.
type TxEnvelope struct {
	Signed     SignedTransaction `json:"signed_transaction"`
	Digest     Digest            `json:"digest"`
	PublicKeys []Bytes           `json:"public_keys"`
}

// Signer is the minimal signing surface the builder needs. Implemented
// by crypto.Signer.
type Signer interface {
	Address() Address
	Sign(msg []byte) Signature
}

// TxBuilder assembles a transaction with chain defaults. Zero actions
// or a missing sender fail Build.
type TxBuilder struct {
	tx Transaction
}

func NewTxBuilder() *TxBuilder {
	return &TxBuilder{tx: Transaction{
		GasBudget:  DefaultGasBudget,
		GasPrice:   DefaultGasPrice,
		Expiration: NoExpiration,
	}}
}

func (b *TxBuilder) Sender(a Address) *TxBuilder      { b.tx.Sender = a; return b }
func (b *TxBuilder) Nonce(n uint64) *TxBuilder        { b.tx.Nonce = n; return b }
func (b *TxBuilder) GasBudget(g uint64) *TxBuilder    { b.tx.GasBudget = g; return b }
func (b *TxBuilder) GasPrice(g uint64) *TxBuilder     { b.tx.GasPrice = g; return b }
func (b *TxBuilder) Expiration(e uint64) *TxBuilder   { b.tx.Expiration = e; return b }
func (b *TxBuilder) AddAction(a Action) *TxBuilder    { b.tx.Actions = append(b.tx.Actions, a); return b }

func (b *TxBuilder) Build() (Transaction, error) {
	if b.tx.Sender.IsZero() {
		return Transaction{}, fmt.Errorf("build tx: sender not set")
	}
	if len(b.tx.Actions) == 0 {
		return Transaction{}, fmt.Errorf("build tx: no actions")
	}
	return b.tx, nil
}

func (b *TxBuilder) BuildAndSign(s Signer) (SignedTransaction, error) {
	if b.tx.Sender.IsZero() {
		b.tx.Sender = s.Address()
	}
	tx, err := b.Build()
	if err != nil {
		return SignedTransaction{}, err
	}
	sig := s.Sign(tx.SigningBytes())
	return SignedTransaction{Transaction: tx, Signatures: []Signature{sig}}, nil
}
