package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenesisProof is the proof recorded in the fixed genesis block. It is not
// the result of running proof-of-work — the genesis block is exempt from
// validation (spec §4.3) — it exists only so every chain starts from an
// identical, reproducible block.
const GenesisProof = 100

// Block is one link in the chain: a batch of transactions, a back-pointer
// to its predecessor by hash, a proof-of-work nonce, and a timestamp.
//
// Transactions' last element is always the coinbase reward for the miner
// that produced the block; every other element is a user transaction taken
// from the pending pool at mining time. The coinbase is stored in the block
// but excluded from the data the proof-of-work hashes over (§4.4, §9).
type Block struct {
	Index        int           `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	Proof        int           `json:"proof"`
	Timestamp    float64       `json:"timestamp"`
}

// Genesis returns the fixed first block of every chain.
func Genesis() Block {
	return Block{
		Index:        0,
		PreviousHash: "",
		Transactions: []Transaction{},
		Proof:        GenesisProof,
		Timestamp:    0,
	}
}

// MinedTransactions returns every transaction in the block except the
// trailing coinbase reward. This is the slice proof-of-work is computed
// and validated over (spec §4.3, §4.4, §9); it is empty for the genesis
// block, which carries no transactions at all.
func (b Block) MinedTransactions() []Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[:len(b.Transactions)-1]
}

// Coinbase returns the block's trailing reward transaction and whether one
// is present. The genesis block has none.
func (b Block) Coinbase() (Transaction, bool) {
	if len(b.Transactions) == 0 {
		return Transaction{}, false
	}
	return b.Transactions[len(b.Transactions)-1], true
}

// canonicalString renders the block's fields in the fixed order that §4.1
// defines chain identity over: index, previous_hash, transactions, proof,
// timestamp. Transactions are embedded via their own canonicalString.
//
// This is a from-scratch canonical form, not a reproduction of the Python
// node's str()-of-a-dict hashing (see DESIGN.md "canonical serialization");
// it only needs to be deterministic and stable across this implementation.
func (b Block) canonicalString() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(b.Index))
	sb.WriteString(b.PreviousHash)
	for _, tx := range b.Transactions {
		sb.WriteString(tx.canonicalString())
	}
	sb.WriteString(strconv.Itoa(b.Proof))
	sb.WriteString(formatAmount(b.Timestamp))
	return sb.String()
}

// Hash computes the Hasher component (§4.1): the lowercase hex SHA-256
// digest of the block's canonical serialization. Block identity, chain
// linkage (previous_hash) and proof-of-work all bind to this value.
func Hash(b Block) string {
	sum := sha256.Sum256([]byte(b.canonicalString()))
	return hex.EncodeToString(sum[:])
}

// HashPayload computes the Hasher over an arbitrary byte payload, for
// components (e.g. proof-of-work candidates) that hash something other
// than a whole block.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
