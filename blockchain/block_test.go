package blockchain

import "testing"

func TestGenesisFields(t *testing.T) {
	g := Genesis()
	if g.Index != 0 || g.PreviousHash != "" || g.Proof != GenesisProof || len(g.Transactions) != 0 {
		t.Errorf("Genesis() = %+v, want index 0, empty previous hash, proof %d, no transactions", g, GenesisProof)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	b := Block{Index: 1, PreviousHash: "abc", Proof: 42, Timestamp: 100}
	if Hash(b) != Hash(b) {
		t.Error("Hash() should be deterministic for identical blocks")
	}
}

func TestHashChangesWithAnyField(t *testing.T) {
	base := Block{Index: 1, PreviousHash: "abc", Proof: 42, Timestamp: 100}
	variants := []Block{
		{Index: 2, PreviousHash: "abc", Proof: 42, Timestamp: 100},
		{Index: 1, PreviousHash: "def", Proof: 42, Timestamp: 100},
		{Index: 1, PreviousHash: "abc", Proof: 43, Timestamp: 100},
		{Index: 1, PreviousHash: "abc", Proof: 42, Timestamp: 101},
	}
	baseHash := Hash(base)
	for i, v := range variants {
		if Hash(v) == baseHash {
			t.Errorf("variant %d: Hash() collided with base block despite a differing field", i)
		}
	}
}

func TestMinedTransactionsExcludesCoinbase(t *testing.T) {
	tx := NewTransaction("alice", "bob", 1, "sig")
	coinbase := NewTransaction(MiningSender, "alice", 10, "")
	b := Block{Transactions: []Transaction{tx, coinbase}}

	mined := b.MinedTransactions()
	if len(mined) != 1 || mined[0] != tx {
		t.Errorf("MinedTransactions() = %+v, want only the non-coinbase transaction", mined)
	}
}

func TestCoinbaseReturnsLastTransaction(t *testing.T) {
	tx := NewTransaction("alice", "bob", 1, "sig")
	coinbase := NewTransaction(MiningSender, "alice", 10, "")
	b := Block{Transactions: []Transaction{tx, coinbase}}

	got, ok := b.Coinbase()
	if !ok || got != coinbase {
		t.Errorf("Coinbase() = (%+v, %v), want (%+v, true)", got, ok, coinbase)
	}
}

func TestCoinbaseAbsentOnEmptyBlock(t *testing.T) {
	var b Block
	if _, ok := b.Coinbase(); ok {
		t.Error("Coinbase() on a block with no transactions should report absent")
	}
}
