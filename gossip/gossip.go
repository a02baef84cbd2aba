// Package gossip implements the Gossip Client (spec §4.8): the outbound
// half of peer-to-peer replication. It pushes new transactions and mined
// blocks to known peers and pulls their chains for conflict resolution,
// over plain HTTP against the same endpoints httpapi exposes.
//
// Every call is request-scoped: it carries its own correlation ID so a
// node's logs can be grepped for one broadcast across every peer it tried,
// the way message_sender.go in the retrieval pack tags deliveries by
// message ID.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/simplechain-go/simplechain/blockchain"
	"github.com/simplechain-go/simplechain/pkg/logging"
)

// DefaultTimeout bounds every outbound call so one unreachable or slow peer
// can't stall a broadcast indefinitely (spec §5: gossip calls must be
// bounded).
const DefaultTimeout = 5 * time.Second

var log = logging.GetDefault().Component("gossip")

// Client broadcasts transactions and blocks to peers and fetches their
// chains. It holds no ledger or peer-set state of its own: callers pass the
// peer list for each call, which keeps the client callable without holding
// any lock belonging to the ledger (spec §5).
type Client struct {
	HTTPClient *http.Client
}

// New returns a Client with the default bounded timeout.
func New() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: DefaultTimeout}}
}

// Outcome reports what happened broadcasting to one peer. Unreachable is
// true for connection failures and timeouts ("peer unreachable", spec §7:
// skip silently); it is false and StatusCode is set when the peer was
// reached but answered with a 4xx/5xx ("peer disagreement" or rejection,
// which the ledger is allowed to treat differently from a dead peer).
type Outcome struct {
	Err         error
	Unreachable bool
	StatusCode  int
}

// BroadcastTransaction POSTs tx to /broadcast on every peer. One peer's
// failure never stops the broadcast to the rest; this client only reports
// what happened per peer, the ledger decides what each Outcome means (spec
// §9 Open Questions).
func (c *Client) BroadcastTransaction(ctx context.Context, peers []string, tx blockchain.Transaction) map[string]Outcome {
	return c.broadcast(ctx, peers, "/broadcast", tx)
}

// BroadcastBlock POSTs block to /broadcastBlock on every peer.
func (c *Client) BroadcastBlock(ctx context.Context, peers []string, block blockchain.Block) map[string]Outcome {
	return c.broadcast(ctx, peers, "/broadcastBlock", block)
}

func (c *Client) broadcast(ctx context.Context, peers []string, path string, payload interface{}) map[string]Outcome {
	correlationID := uuid.New().String()
	results := make(map[string]Outcome, len(peers))

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode broadcast payload", "correlation_id", correlationID, "error", err)
		outcome := Outcome{Err: fmt.Errorf("gossip: encode payload: %w", err)}
		for _, peer := range peers {
			results[peer] = outcome
		}
		return results
	}

	for _, peer := range peers {
		outcome := c.post(ctx, peer, path, body, correlationID)
		results[peer] = outcome
		if outcome.Err != nil {
			log.Warn("broadcast to peer failed",
				"correlation_id", correlationID,
				"peer", peer,
				"path", path,
				"unreachable", outcome.Unreachable,
				"status", outcome.StatusCode,
				"error", outcome.Err)
			continue
		}
		log.Debug("broadcast to peer succeeded",
			"correlation_id", correlationID,
			"peer", peer,
			"path", path)
	}

	return results
}

func (c *Client) post(ctx context.Context, peer, path string, body []byte, correlationID string) Outcome {
	url := fmt.Sprintf("http://%s%s", peer, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Err: fmt.Errorf("gossip: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", correlationID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Outcome{Err: fmt.Errorf("gossip: request to %s: %w", peer, err), Unreachable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Outcome{
			Err:        fmt.Errorf("gossip: peer %s responded %d", peer, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return Outcome{StatusCode: resp.StatusCode}
}

// chainResponse mirrors the body GET /chain returns (spec §6).
type chainResponse struct {
	Chain  []blockchain.Block `json:"chain"`
	Length int                `json:"length"`
}

// FetchChain pulls a peer's current chain via GET /chain, for use by the
// ledger's longest-valid-chain resolution (spec §4.6 resolve).
func (c *Client) FetchChain(ctx context.Context, peer string) ([]blockchain.Block, error) {
	correlationID := uuid.New().String()
	url := fmt.Sprintf("http://%s/chain", peer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("gossip: build request: %w", err)
	}
	req.Header.Set("X-Correlation-Id", correlationID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Warn("fetch chain from peer failed", "correlation_id", correlationID, "peer", peer, "error", err)
		return nil, fmt.Errorf("gossip: request to %s: %w", peer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn("fetch chain from peer failed", "correlation_id", correlationID, "peer", peer, "status", resp.StatusCode)
		return nil, fmt.Errorf("gossip: peer %s responded %d", peer, resp.StatusCode)
	}

	var decoded chainResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("gossip: decode chain from %s: %w", peer, err)
	}

	log.Debug("fetched chain from peer", "correlation_id", correlationID, "peer", peer, "length", len(decoded.Chain))
	return decoded.Chain, nil
}

// FetchChains pulls every peer's chain, skipping peers that fail. It never
// returns an error itself: an unreachable peer simply contributes nothing
// to resolution, the way the pack's message sender treats an undeliverable
// message as a retry candidate rather than a fatal condition.
func (c *Client) FetchChains(ctx context.Context, peers []string) map[string][]blockchain.Block {
	chains := make(map[string][]blockchain.Block, len(peers))
	for _, peer := range peers {
		chain, err := c.FetchChain(ctx, peer)
		if err != nil {
			continue
		}
		chains[peer] = chain
	}
	return chains
}
