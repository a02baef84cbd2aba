// Package wallet implements the node's identity: an RSA key pair used to
// sign outgoing transactions and to verify incoming ones (spec §4.2).
//
// The key size and signature scheme are fixed by the spec (1024-bit RSA,
// PKCS#1 v1.5 over SHA-256) rather than chosen for strength — this is a
// small pedagogical chain, not a production currency, and changing either
// would break compatibility with every wallet file already on disk.
package wallet

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/simplechain-go/simplechain/blockchain"
)

// KeyBits is the RSA modulus size the spec mandates.
const KeyBits = 1024

// ErrNoWallet is returned by operations that need a key pair when none has
// been created or loaded yet. Its absence is an expected condition (spec
// §4.2), not a fault — callers translate it to "no wallet" responses.
var ErrNoWallet = errors.New("wallet: no key pair")

// Wallet holds the node's identity: a private key for signing and the
// corresponding public key, which doubles as the node's address (it is
// used verbatim as a transaction's sender and as the coinbase recipient).
type Wallet struct {
	privateKey *rsa.PrivateKey
	publicHex  string
	privateHex string
}

// New generates a fresh 1024-bit RSA key pair (spec §4.2 create_keys).
func New() (*Wallet, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return fromPrivateKey(key)
}

func fromPrivateKey(key *rsa.PrivateKey) (*Wallet, error) {
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: marshal public key: %w", err)
	}
	privDER := x509.MarshalPKCS1PrivateKey(key)

	return &Wallet{
		privateKey: key,
		publicHex:  hex.EncodeToString(pubDER),
		privateHex: hex.EncodeToString(privDER),
	}, nil
}

// PublicKey returns the hex-encoded DER public key: the node's identity,
// used as a transaction sender and as the coinbase reward recipient.
func (w *Wallet) PublicKey() string { return w.publicHex }

// PrivateKey returns the hex-encoded DER private key, as persisted to the
// wallet file. Exposed so the node facade can surface it over
// POST/GET /wallet (spec §6) the way the original node does.
func (w *Wallet) PrivateKey() string { return w.privateHex }

// Sign implements sign_transaction (spec §4.2): it signs
// SHA256(sender||recipient||amount) with PKCS#1 v1.5 and returns the
// hex-encoded signature. sender must equal the wallet's own public key —
// a wallet only ever signs on its own behalf.
func (w *Wallet) Sign(sender, recipient string, amount float64) (string, error) {
	if sender != w.publicHex {
		return "", fmt.Errorf("wallet: sender %q does not match wallet identity", sender)
	}
	tx := blockchain.NewTransaction(sender, recipient, amount, "")
	digest := sha256.Sum256(tx.SigningPayload())

	sig, err := rsa.SignPKCS1v15(rand.Reader, w.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("wallet: sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify implements verify_transaction (spec §4.2): coinbase transactions
// are trusted by construction, everything else must carry a signature that
// verifies against the sender's public key. Any cryptographic or encoding
// failure yields false, never an error — malformed input is simply not a
// valid transaction (spec §4.2 Failure mode).
func Verify(tx blockchain.Transaction) bool {
	if tx.IsCoinbase() {
		return true
	}

	pubDER, err := hex.DecodeString(tx.Sender)
	if err != nil {
		return false
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return false
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return false
	}

	sig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(tx.SigningPayload())
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// Save persists the key pair to path as two newline-terminated lines:
// public key, then private key, both hex-encoded DER (spec §4.7).
func (w *Wallet) Save(path string) error {
	content := w.publicHex + "\n" + w.privateHex + "\n"
	return os.WriteFile(path, []byte(content), 0o600)
}

// Load reads a wallet previously written by Save. A missing file is
// reported as ErrNoWallet, the "no wallet yet" condition spec §4.2
// describes as expected rather than erroneous.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoWallet
		}
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}

	lines := splitLines(string(data))
	if len(lines) < 2 {
		return nil, fmt.Errorf("wallet: malformed wallet file %s", path)
	}

	privDER, err := hex.DecodeString(lines[1])
	if err != nil {
		return nil, fmt.Errorf("wallet: decode private key: %w", err)
	}
	key, err := x509.ParsePKCS1PrivateKey(privDER)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse private key: %w", err)
	}

	return fromPrivateKey(key)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
