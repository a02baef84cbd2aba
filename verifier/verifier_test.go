package verifier

import (
	"testing"

	"github.com/simplechain-go/simplechain/blockchain"
)

func mineValidProof(t *testing.T, transactions []blockchain.Transaction, lastHash string) int {
	t.Helper()
	proof := 0
	for !ValidProof(transactions, lastHash, proof) {
		proof++
	}
	return proof
}

func TestValidProofAcceptsMinedProof(t *testing.T) {
	txs := []blockchain.Transaction{blockchain.NewTransaction("alice", "bob", 1, "sig")}
	proof := mineValidProof(t, txs, "last-hash")
	if !ValidProof(txs, "last-hash", proof) {
		t.Error("a mined proof should validate against the inputs it was mined for")
	}
}

func TestValidProofRejectsWrongProof(t *testing.T) {
	txs := []blockchain.Transaction{blockchain.NewTransaction("alice", "bob", 1, "sig")}
	proof := mineValidProof(t, txs, "last-hash")
	if ValidProof(txs, "last-hash", proof+1) {
		t.Error("an adjacent proof should not also validate")
	}
}

func TestValidChainAcceptsGenesisOnly(t *testing.T) {
	if !ValidChain([]blockchain.Block{blockchain.Genesis()}) {
		t.Error("a chain containing only genesis should be valid")
	}
}

func TestValidChainAcceptsProperlyLinkedChain(t *testing.T) {
	genesis := blockchain.Genesis()
	lastHash := blockchain.Hash(genesis)
	proof := mineValidProof(t, nil, lastHash)

	next := blockchain.Block{
		Index:        1,
		PreviousHash: lastHash,
		Transactions: []blockchain.Transaction{},
		Proof:        proof,
	}

	if !ValidChain([]blockchain.Block{genesis, next}) {
		t.Error("a correctly linked and mined chain should be valid")
	}
}

func TestValidChainRejectsBrokenLink(t *testing.T) {
	genesis := blockchain.Genesis()
	next := blockchain.Block{Index: 1, PreviousHash: "wrong-hash", Proof: 0}

	if ValidChain([]blockchain.Block{genesis, next}) {
		t.Error("a chain whose previous_hash does not match should be invalid")
	}
}

func TestValidChainRejectsBadProof(t *testing.T) {
	genesis := blockchain.Genesis()
	lastHash := blockchain.Hash(genesis)
	next := blockchain.Block{Index: 1, PreviousHash: lastHash, Proof: 0}

	if ValidChain([]blockchain.Block{genesis, next}) {
		t.Error("a chain with an unsolved proof should be invalid")
	}
}

func TestVerifyTransactionChecksAmountNotSender(t *testing.T) {
	tx := blockchain.NewTransaction("alice", "bob", 10, "sig")
	source := BalanceSourceFunc(func(participant string) float64 {
		if participant == "alice" {
			return 10
		}
		return 0
	})
	if !VerifyTransaction(tx, source) {
		t.Error("a transaction should be valid when the sender's balance covers the amount")
	}

	insufficient := BalanceSourceFunc(func(participant string) float64 { return 5 })
	if VerifyTransaction(tx, insufficient) {
		t.Error("a transaction should be invalid when the sender's balance is below the amount")
	}
}

func TestVerifyTransactionsRequiresAll(t *testing.T) {
	pool := []blockchain.Transaction{
		blockchain.NewTransaction("alice", "bob", 5, "sig"),
		blockchain.NewTransaction("alice", "carol", 100, "sig"),
	}
	source := BalanceSourceFunc(func(participant string) float64 { return 10 })

	if VerifyTransactions(pool, source) {
		t.Error("VerifyTransactions should fail if any one transaction fails")
	}
}
