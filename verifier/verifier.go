// Package verifier holds the stateless predicates the ledger mutates
// against (spec §4.3): proof-of-work validity, chain validity and balance
// checks. None of these functions touch shared state; they only read their
// arguments, which is what lets the ledger call them without holding its
// lock across expensive or blocking work.
package verifier

import (
	"strconv"
	"strings"

	"github.com/simplechain-go/simplechain/blockchain"
)

// Difficulty is the fixed number of leading hex-zero characters a proof's
// hash must have. The spec fixes this at two; there is no difficulty
// adjustment (Non-goal).
const Difficulty = 2

const leadingZeros = "00"

// BalanceSource supplies a participant's current balance. It replaces the
// duck-typed "get_balance" callback the distilled spec's Python source
// passes around (§9 Design Notes) with an explicit capability.
type BalanceSource interface {
	BalanceOf(participant string) float64
}

// BalanceSourceFunc adapts a plain function to BalanceSource.
type BalanceSourceFunc func(participant string) float64

// BalanceOf implements BalanceSource.
func (f BalanceSourceFunc) BalanceOf(participant string) float64 { return f(participant) }

// transactionsDigestInput renders the ordered-field form of each
// transaction (sender, recipient, signature, amount — spec §4.1) and joins
// them with no separator, mirroring the block's own canonicalString.
func transactionsDigestInput(transactions []blockchain.Transaction) string {
	var sb strings.Builder
	for _, tx := range transactions {
		sb.WriteString(tx.Sender)
		sb.WriteString(tx.Recipient)
		sb.WriteString(tx.Signature)
		sb.WriteString(strconv.FormatFloat(tx.Amount, 'f', -1, 64))
	}
	return sb.String()
}

// ValidProof reports whether proof solves the proof-of-work puzzle for the
// given pending transactions and the predecessor block's hash: SHA-256 of
// the guess must begin with Difficulty hex-zero characters (spec §4.4).
func ValidProof(transactions []blockchain.Transaction, lastHash string, proof int) bool {
	guess := transactionsDigestInput(transactions) + lastHash + strconv.Itoa(proof)
	digest := blockchain.HashPayload([]byte(guess))
	return strings.HasPrefix(digest, leadingZeros[:Difficulty])
}

// ValidChain walks chain and reports whether every non-genesis block's
// previous_hash matches H(predecessor) and its proof-of-work is valid over
// its own mined transactions (spec §4.3). The genesis block is exempt.
func ValidChain(chain []blockchain.Block) bool {
	for i := 1; i < len(chain); i++ {
		block := chain[i]
		predecessor := chain[i-1]

		if block.PreviousHash != blockchain.Hash(predecessor) {
			return false
		}
		if !ValidProof(block.MinedTransactions(), block.PreviousHash, block.Proof) {
			return false
		}
	}
	return true
}

// VerifyTransaction reports whether the sender's balance, as reported by
// source, covers tx.Amount. This is the balance half of transaction
// validity; signature validity is the wallet package's concern.
//
// The spec's Python source has a variant that mistakenly compares the
// balance against tx.Sender instead of tx.Amount (§9 Open Questions); this
// always compares against Amount.
func VerifyTransaction(tx blockchain.Transaction, source BalanceSource) bool {
	return source.BalanceOf(tx.Sender) >= tx.Amount
}

// VerifyTransactions reports whether every transaction in pool passes
// VerifyTransaction against source.
func VerifyTransactions(pool []blockchain.Transaction, source BalanceSource) bool {
	for _, tx := range pool {
		if !VerifyTransaction(tx, source) {
			return false
		}
	}
	return true
}
