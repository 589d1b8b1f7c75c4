package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrSigning wraps credential failures during transaction signing.
var ErrSigning = errors.New("signing failed")

// Wallet holds the one signing credential of this process. The key is
// read-only shared state: it signs, it is never mutated.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// New creates a wallet from a base58-encoded private key.
func New(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return fromBytes(privateKeyBytes)
}

// Load reads a key file: either a solana-keygen JSON byte array or a
// base58 string.
func Load(path string) (*Wallet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
			return nil, fmt.Errorf("invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid byte at index %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		return fromBytes(b)
	}
	return New(trimmed)
}

func fromBytes(b []byte) (*Wallet, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	privateKey := solana.PrivateKey(b)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// SignTransaction signs a transaction with the wallet's private key.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return nil
}

// SignSerialized decodes a serialized transaction template (the shape the
// Jupiter swap endpoint returns, with a zeroed signature slot), signs its
// message and returns the ready-to-send bytes.
func (w *Wallet) SignSerialized(raw []byte) ([]byte, solana.Signature, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("%w: failed to decode transaction: %v", ErrSigning, err)
	}

	if err := w.SignTransaction(tx); err != nil {
		return nil, solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return nil, solana.Signature{}, fmt.Errorf("%w: transaction has no signature slot for %s", ErrSigning, w.PublicKey)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("%w: failed to serialize signed transaction: %v", ErrSigning, err)
	}
	return signed, tx.Signatures[0], nil
}

// String returns the wallet's public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
