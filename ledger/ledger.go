// Package ledger implements the Ledger (spec §4.6): the ordered chain of
// blocks and the pool of pending transactions, with balance computation,
// mining, transaction and block admission, and longest-valid-chain
// resolution. Its one mutex guards the chain, the pending pool and the
// conflict flag; the peer registry carries its own lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/simplechain-go/simplechain/blockchain"
	"github.com/simplechain-go/simplechain/gossip"
	"github.com/simplechain-go/simplechain/peerset"
	"github.com/simplechain-go/simplechain/persistence"
	"github.com/simplechain-go/simplechain/pkg/logging"
	"github.com/simplechain-go/simplechain/verifier"
	"github.com/simplechain-go/simplechain/wallet"
)

// MiningReward is the fixed coinbase amount credited to whoever mines a
// block (spec §4.6). There is no halving schedule (Non-goal).
const MiningReward = 10

var (
	// ErrNoWallet is returned by operations that require a hosting wallet
	// when none has been created or loaded yet (spec §4.6, §7 WalletMissing).
	// It wraps wallet.ErrNoWallet, so errors.Is matches either sentinel.
	ErrNoWallet = fmt.Errorf("ledger: no wallet bound to this node: %w", wallet.ErrNoWallet)
	// ErrInvalidSignature means a transaction's signature does not verify
	// against its claimed sender.
	ErrInvalidSignature = errors.New("ledger: transaction signature does not verify")
	// ErrInsufficientBalance means the sender's balance does not cover the
	// transaction amount (spec §4.5).
	ErrInsufficientBalance = errors.New("ledger: sender balance does not cover amount")
	// ErrPeerRejected means at least one peer answered a broadcast with a
	// 4xx/5xx. The transaction is still admitted locally; only the report
	// to the caller reflects the peer's objection (spec §9 Open Questions:
	// source behavior is kept as-is, see DESIGN.md).
	ErrPeerRejected = errors.New("ledger: a peer rejected the broadcast")
	// ErrConflictUnresolved means mining is blocked until resolve() clears
	// the conflict flag (spec §4.6 state-machine view).
	ErrConflictUnresolved = errors.New("ledger: chain conflict must be resolved before mining")
	// ErrInvalidBlock means a block offered by add_block failed
	// proof-of-work or linkage validation.
	ErrInvalidBlock = errors.New("ledger: block failed proof-of-work or linkage validation")
)

var log = logging.GetDefault().Component("ledger")

// BlockOutcome classifies what add_block did with an incoming block,
// distinguishing "appended" from "peer is ahead of us" from "rejected" —
// the three outcomes the HTTP broadcastBlock endpoint maps to its three
// response codes (spec §6).
type BlockOutcome int

const (
	// BlockAppended means the block extended the local tip and was adopted.
	BlockAppended BlockOutcome = iota
	// BlockAhead means the block's index is further ahead than one past
	// the local tip: the peer appears to have a longer chain, so the local
	// conflict flag is set to prompt a resolve(), but the block itself is
	// not appended (only resolve() adopts a whole chain, spec §4.6).
	BlockAhead
	// BlockRejected means the block neither extends the tip nor looks like
	// it comes from a chain ahead of ours; it fails validation outright.
	BlockRejected
)

// Ledger holds the chain, the pending pool, and the conflict flag behind a
// single mutex (spec §5: one mutex is sufficient; fine-grained locking is
// unnecessary). Outbound peer I/O — broadcasting and chain fetches — always
// happens after the lock is released.
type Ledger struct {
	mu       sync.Mutex
	chain    []blockchain.Block
	pending  []blockchain.Transaction
	conflict bool

	peers  *peerset.Set
	gossip *gossip.Client
	store  *persistence.Store
}

// New constructs a Ledger from a loaded (or fresh) persisted state. peers is
// populated with state.Peers as a side effect.
func New(peers *peerset.Set, gossipClient *gossip.Client, store *persistence.Store, state *persistence.State) *Ledger {
	if state == nil {
		state = persistence.Fresh()
	}
	peers.ReplaceAll(state.Peers)

	return &Ledger{
		chain:   append([]blockchain.Block(nil), state.Chain...),
		pending: append([]blockchain.Transaction(nil), state.Pending...),
		peers:   peers,
		gossip:  gossipClient,
		store:   store,
	}
}

// Chain returns a snapshot of the current chain.
func (l *Ledger) Chain() []blockchain.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]blockchain.Block(nil), l.chain...)
}

// Pending returns a snapshot of the pending transaction pool.
func (l *Ledger) Pending() []blockchain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]blockchain.Transaction(nil), l.pending...)
}

// ConflictFlag reports whether a peer has disagreed with a block this node
// broadcast, or reported a chain ahead of this node's, since the last
// successful Resolve.
func (l *Ledger) ConflictFlag() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conflict
}

// Balance computes participant's current balance: received across the
// chain, minus sent across the chain, minus sent in pending (spec §4.5).
// Pending receipts are never credited.
func (l *Ledger) Balance(participant string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return computeBalance(l.chain, l.pending, participant)
}

func computeBalance(chain []blockchain.Block, pending []blockchain.Transaction, participant string) float64 {
	var balance float64
	for _, block := range chain {
		for _, tx := range block.Transactions {
			if tx.Recipient == participant {
				balance += tx.Amount
			}
			if tx.Sender == participant {
				balance -= tx.Amount
			}
		}
	}
	for _, tx := range pending {
		if tx.Sender == participant {
			balance -= tx.Amount
		}
	}
	return balance
}

// SubmitTransaction implements the locally-originated half of add_transaction
// (spec §4.6): it signs recipient/amount with w, admits the result to
// pending, and broadcasts it to every peer. w must be the node's own
// wallet; a nil w yields ErrNoWallet.
func (l *Ledger) SubmitTransaction(ctx context.Context, w *wallet.Wallet, recipient string, amount float64) (blockchain.Transaction, error) {
	if w == nil {
		return blockchain.Transaction{}, ErrNoWallet
	}

	signature, err := w.Sign(w.PublicKey(), recipient, amount)
	if err != nil {
		return blockchain.Transaction{}, fmt.Errorf("ledger: sign transaction: %w", err)
	}
	tx := blockchain.NewTransaction(w.PublicKey(), recipient, amount, signature)

	if err := l.admit(tx); err != nil {
		return blockchain.Transaction{}, err
	}

	if err := l.broadcastTransaction(ctx, tx); err != nil {
		return tx, err
	}
	return tx, nil
}

// ReceiveTransaction implements the peer-originated half of add_transaction:
// a transaction that already carries a signature, submitted via
// POST /broadcast, is admitted but never rebroadcast further (spec §4.6
// is_receiving=true).
func (l *Ledger) ReceiveTransaction(w *wallet.Wallet, tx blockchain.Transaction) error {
	if w == nil {
		return ErrNoWallet
	}
	return l.admit(tx)
}

func (l *Ledger) admit(tx blockchain.Transaction) error {
	if !wallet.Verify(tx) {
		return ErrInvalidSignature
	}

	l.mu.Lock()
	if !verifier.VerifyTransaction(tx, verifier.BalanceSourceFunc(func(participant string) float64 {
		return computeBalance(l.chain, l.pending, participant)
	})) {
		l.mu.Unlock()
		return ErrInsufficientBalance
	}
	l.pending = append(l.pending, tx)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if err := l.store.Save(snapshot); err != nil {
		log.Error("failed to persist after admitting transaction", "error", err)
	}
	return nil
}

func (l *Ledger) broadcastTransaction(ctx context.Context, tx blockchain.Transaction) error {
	peers := l.peers.List()
	if len(peers) == 0 {
		return nil
	}

	for peer, outcome := range l.gossip.BroadcastTransaction(ctx, peers, tx) {
		if outcome.Err == nil || outcome.Unreachable {
			continue
		}
		// Reached the peer but it answered with a 4xx/5xx: the source
		// lets this nullify an already-admitted local transaction, a
		// choice the spec keeps without endorsing (§9 Open Questions).
		log.Warn("peer rejected broadcast transaction", "peer", peer, "status", outcome.StatusCode)
		return fmt.Errorf("%w: %s responded %d", ErrPeerRejected, peer, outcome.StatusCode)
	}
	return nil
}

// MineBlock implements mine_block (spec §4.6): it runs the proof-of-work
// search over a snapshot of pending against the current tip, appends a
// coinbase reward to w's identity, verifies every included transaction's
// signature, appends the new block, empties pending, and broadcasts the
// block to every peer.
func (l *Ledger) MineBlock(ctx context.Context, w *wallet.Wallet) (blockchain.Block, error) {
	if w == nil {
		return blockchain.Block{}, ErrNoWallet
	}

	l.mu.Lock()
	if l.conflict {
		l.mu.Unlock()
		return blockchain.Block{}, ErrConflictUnresolved
	}
	pendingSnapshot := append([]blockchain.Transaction(nil), l.pending...)
	tip := l.chain[len(l.chain)-1]
	l.mu.Unlock()

	lastHash := blockchain.Hash(tip)
	proof := 0
	for !verifier.ValidProof(pendingSnapshot, lastHash, proof) {
		proof++
	}

	coinbase := blockchain.NewTransaction(blockchain.MiningSender, w.PublicKey(), MiningReward, "")
	transactions := append(append([]blockchain.Transaction(nil), pendingSnapshot...), coinbase)

	for _, tx := range transactions {
		if !wallet.Verify(tx) {
			return blockchain.Block{}, ErrInvalidSignature
		}
	}

	l.mu.Lock()
	if l.conflict {
		l.mu.Unlock()
		return blockchain.Block{}, ErrConflictUnresolved
	}
	block := blockchain.Block{
		Index:        tip.Index + 1,
		PreviousHash: lastHash,
		Transactions: transactions,
		Proof:        proof,
		Timestamp:    float64(time.Now().UnixNano()) / 1e9,
	}
	l.chain = append(l.chain, block)
	l.pending = []blockchain.Transaction{}
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if err := l.store.Save(snapshot); err != nil {
		log.Error("failed to persist after mining block", "error", err)
	}

	l.broadcastBlock(ctx, block)

	return block, nil
}

func (l *Ledger) broadcastBlock(ctx context.Context, block blockchain.Block) {
	peers := l.peers.List()
	if len(peers) == 0 {
		return
	}

	conflictReported := false
	for peer, outcome := range l.gossip.BroadcastBlock(ctx, peers, block) {
		if outcome.Err == nil {
			continue
		}
		if outcome.StatusCode == http.StatusConflict {
			conflictReported = true
			log.Info("peer reported a conflicting chain while broadcasting block", "peer", peer)
			continue
		}
		log.Warn("broadcasting block to peer failed",
			"peer", peer, "unreachable", outcome.Unreachable, "status", outcome.StatusCode, "error", outcome.Err)
	}

	if conflictReported {
		l.mu.Lock()
		l.conflict = true
		l.mu.Unlock()
	}
}

// AddBlock implements the receiving half of add_block (spec §4.6): a block
// offered by a peer, typically via POST /broadcastBlock.
func (l *Ledger) AddBlock(block blockchain.Block) (BlockOutcome, error) {
	l.mu.Lock()

	tip := l.chain[len(l.chain)-1]
	tipHash := blockchain.Hash(tip)

	switch {
	case block.PreviousHash == tipHash && verifier.ValidProof(block.MinedTransactions(), block.PreviousHash, block.Proof):
		l.chain = append(l.chain, block)
		l.pending = removeMatching(l.pending, block.Transactions)
		snapshot := l.snapshotLocked()
		l.mu.Unlock()

		if err := l.store.Save(snapshot); err != nil {
			log.Error("failed to persist after adding block", "error", err)
		}
		return BlockAppended, nil

	case block.Index > tip.Index+1:
		// The peer's chain has moved further ahead than one block; we
		// cannot splice a single block into a gap, so flag for a full
		// resolve() instead of rejecting outright (spec §6 "200 if ahead").
		l.conflict = true
		snapshot := l.snapshotLocked()
		l.mu.Unlock()

		log.Info("peer block is ahead of local chain, flagging for resolution",
			"peer_block_index", block.Index, "local_tip_index", tip.Index)
		if err := l.store.Save(snapshot); err != nil {
			log.Error("failed to persist after flagging conflict", "error", err)
		}
		return BlockAhead, nil

	default:
		l.mu.Unlock()
		return BlockRejected, ErrInvalidBlock
	}
}

func removeMatching(pending []blockchain.Transaction, included []blockchain.Transaction) []blockchain.Transaction {
	matched := make(map[blockchain.Transaction]struct{}, len(included))
	for _, tx := range included {
		matched[tx] = struct{}{}
	}

	out := make([]blockchain.Transaction, 0, len(pending))
	for _, tx := range pending {
		if _, ok := matched[tx]; ok {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Resolve implements resolve() (spec §4.6): it fetches every peer's chain,
// adopts the longest one that also passes ValidChain, clears pending if a
// replacement occurred, and always clears the conflict flag. It reports
// whether a replacement occurred.
func (l *Ledger) Resolve(ctx context.Context) bool {
	l.mu.Lock()
	peers := l.peers.List()
	winner := append([]blockchain.Block(nil), l.chain...)
	l.mu.Unlock()

	replaced := false
	for peer, chain := range l.gossip.FetchChains(ctx, peers) {
		if len(chain) > len(winner) && verifier.ValidChain(chain) {
			winner = chain
			replaced = true
			log.Info("adopting longer valid chain from peer", "peer", peer, "length", len(chain))
		}
	}

	l.mu.Lock()
	if replaced {
		l.chain = winner
		l.pending = []blockchain.Transaction{}
	}
	l.conflict = false
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if err := l.store.Save(snapshot); err != nil {
		log.Error("failed to persist after resolving conflicts", "error", err)
	}

	return replaced
}

// AddPeer adds endpoint to the peer registry and persists the new set,
// returning the full, current peer list.
func (l *Ledger) AddPeer(endpoint string) []string {
	l.peers.Add(endpoint)
	return l.persistPeers()
}

// RemovePeer removes endpoint from the peer registry and persists the new
// set, returning the full, current peer list.
func (l *Ledger) RemovePeer(endpoint string) []string {
	l.peers.Remove(endpoint)
	return l.persistPeers()
}

// Peers returns the current peer list.
func (l *Ledger) Peers() []string {
	return l.peers.List()
}

func (l *Ledger) persistPeers() []string {
	l.mu.Lock()
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if err := l.store.Save(snapshot); err != nil {
		log.Error("failed to persist after peer set change", "error", err)
	}
	return snapshot.Peers
}

// snapshotLocked builds a persistence.State from the current in-memory
// state. Callers must hold l.mu.
func (l *Ledger) snapshotLocked() *persistence.State {
	return &persistence.State{
		Chain:   append([]blockchain.Block(nil), l.chain...),
		Pending: append([]blockchain.Transaction(nil), l.pending...),
		Peers:   l.peers.List(),
	}
}
