// Package node implements the Node Facade (spec §2, §9 "Global mutable
// state"): it binds one wallet identity to a Ledger and a peer registry and
// exposes the single API surface the HTTP adapter calls into. There is no
// process-level singleton; a Node is a value constructed once at startup
// and held by the adapter.
package node

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/simplechain-go/simplechain/blockchain"
	"github.com/simplechain-go/simplechain/config"
	"github.com/simplechain-go/simplechain/gossip"
	"github.com/simplechain-go/simplechain/ledger"
	"github.com/simplechain-go/simplechain/peerset"
	"github.com/simplechain-go/simplechain/persistence"
	"github.com/simplechain-go/simplechain/pkg/logging"
	"github.com/simplechain-go/simplechain/wallet"
)

var log = logging.GetDefault().Component("node")

// Node binds a wallet identity, a Ledger, and a Peer Registry for one
// listening port.
type Node struct {
	Port int

	walletPath string

	mu     sync.RWMutex
	wallet *wallet.Wallet

	Ledger *ledger.Ledger
	Peers  *peerset.Set
}

// New constructs a Node for cfg: it loads persisted chain/pending/peer
// state (or starts fresh), loads a wallet from disk if one already exists
// (absence is not an error — spec §4.2), and seeds the peer registry from
// cfg.Peers when the state file had none of its own.
func New(cfg *config.Config) (*Node, error) {
	statePath := persistence.PathForPort(cfg.DataDir, portString(cfg.Port))
	walletPath := walletPathForPort(cfg.DataDir, portString(cfg.Port))

	store := persistence.New(statePath)
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("node: load state: %w", err)
	}

	peers := peerset.New()
	l := ledger.New(peers, gossip.New(), store, state)

	if len(state.Peers) == 0 {
		for _, peer := range cfg.Peers {
			peers.Add(peer)
		}
	}

	n := &Node{
		Port:       cfg.Port,
		walletPath: walletPath,
		Ledger:     l,
		Peers:      peers,
	}

	w, err := wallet.Load(walletPath)
	switch {
	case err == nil:
		n.wallet = w
		log.Info("loaded existing wallet", "public_key", shortenKey(w.PublicKey()))
	case err == wallet.ErrNoWallet:
		log.Info("no wallet on disk yet")
	default:
		return nil, fmt.Errorf("node: load wallet: %w", err)
	}

	return n, nil
}

// CreateWallet generates a fresh key pair, persists it, and adopts it as
// this node's identity, replacing whatever wallet was bound before (spec
// §3: "replaced wholesale on re-creation").
func (n *Node) CreateWallet() (*wallet.Wallet, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, fmt.Errorf("node: generate wallet: %w", err)
	}
	if err := w.Save(n.walletPath); err != nil {
		return nil, fmt.Errorf("node: save wallet: %w", err)
	}

	n.mu.Lock()
	n.wallet = w
	n.mu.Unlock()

	log.Info("created wallet", "public_key", shortenKey(w.PublicKey()))
	return w, nil
}

// Wallet returns the node's current identity, or nil if none has been
// created or loaded yet.
func (n *Node) Wallet() *wallet.Wallet {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.wallet
}

// Balance returns the local wallet's balance: the zero-argument form of
// balance() the spec's §9 Open Questions requires alongside BalanceOf, here
// implemented by supplying the local identity to the ledger's
// participant-scoped query.
func (n *Node) Balance() (float64, error) {
	w := n.Wallet()
	if w == nil {
		return 0, wallet.ErrNoWallet
	}
	return n.Ledger.Balance(w.PublicKey()), nil
}

// BalanceOf returns an arbitrary participant's balance.
func (n *Node) BalanceOf(participant string) float64 {
	return n.Ledger.Balance(participant)
}

// SubmitTransaction signs and admits a new transaction from this node's own
// wallet, then broadcasts it to peers.
func (n *Node) SubmitTransaction(ctx context.Context, recipient string, amount float64) (blockchain.Transaction, error) {
	return n.Ledger.SubmitTransaction(ctx, n.Wallet(), recipient, amount)
}

// ReceiveTransaction admits a pre-signed transaction arriving from a peer.
func (n *Node) ReceiveTransaction(tx blockchain.Transaction) error {
	return n.Ledger.ReceiveTransaction(n.Wallet(), tx)
}

// MineBlock runs proof-of-work over pending transactions and mints the
// coinbase reward to this node's own wallet.
func (n *Node) MineBlock(ctx context.Context) (blockchain.Block, error) {
	return n.Ledger.MineBlock(ctx, n.Wallet())
}

// AddBlock admits a block offered by a peer.
func (n *Node) AddBlock(block blockchain.Block) (ledger.BlockOutcome, error) {
	return n.Ledger.AddBlock(block)
}

// Resolve runs longest-valid-chain conflict resolution against every known
// peer.
func (n *Node) Resolve(ctx context.Context) bool {
	return n.Ledger.Resolve(ctx)
}

func portString(port int) string {
	return fmt.Sprintf("%d", port)
}

func walletPathForPort(dir, port string) string {
	return filepath.Join(dir, fmt.Sprintf("wallet-%s.txt", port))
}

func shortenKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12] + "..."
}
