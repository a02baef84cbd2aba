// Package persistence implements the node state file described in spec
// §4.7: a single text file, three newline-terminated lines of JSON holding
// the chain, the pending transaction pool, and the peer list.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simplechain-go/simplechain/blockchain"
	"github.com/simplechain-go/simplechain/pkg/logging"
)

var log = logging.GetDefault().Component("persistence")

// State is the full durable state of one node.
type State struct {
	Chain   []blockchain.Block        `json:"chain"`
	Pending []blockchain.Transaction  `json:"pending"`
	Peers   []string                  `json:"peers"`
}

// Fresh returns the state of a brand-new node: a chain containing only the
// genesis block, no pending transactions, no known peers.
func Fresh() *State {
	return &State{
		Chain:   []blockchain.Block{blockchain.Genesis()},
		Pending: []blockchain.Transaction{},
		Peers:   []string{},
	}
}

// Store reads and writes a node's state file.
type Store struct {
	Path string
}

// New returns a Store backed by the given file path.
func New(path string) *Store {
	return &Store{Path: path}
}

// PathForPort returns the conventional state file name for a node listening
// on the given port: "blockchain-<port>.txt" in dir.
func PathForPort(dir, port string) string {
	return filepath.Join(dir, fmt.Sprintf("blockchain-%s.txt", port))
}

// Load reads the state file. A missing file is not an error: it means this
// is a fresh node, so Load returns Fresh() (spec §4.7: "Load tolerates
// missing file").
func (s *Store) Load() (*State, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fresh(), nil
		}
		return nil, fmt.Errorf("persistence: open %s: %w", s.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	lines := make([]string, 0, 3)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("persistence: read %s: %w", s.Path, err)
	}
	for len(lines) < 3 {
		lines = append(lines, "[]")
	}

	state := &State{}
	if err := json.Unmarshal([]byte(lines[0]), &state.Chain); err != nil {
		return nil, fmt.Errorf("persistence: decode chain: %w", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &state.Pending); err != nil {
		return nil, fmt.Errorf("persistence: decode pending: %w", err)
	}
	if err := json.Unmarshal([]byte(lines[2]), &state.Peers); err != nil {
		return nil, fmt.Errorf("persistence: decode peers: %w", err)
	}

	if len(state.Chain) == 0 {
		state.Chain = []blockchain.Block{blockchain.Genesis()}
	}
	if state.Pending == nil {
		state.Pending = []blockchain.Transaction{}
	}
	if state.Peers == nil {
		state.Peers = []string{}
	}

	return state, nil
}

// Save writes state to the store's path. It writes to a temporary file in
// the same directory and renames it into place, so a save that fails or is
// interrupted never leaves a half-written state file behind (spec §5:
// "write-to-temp-then-rename suffices").
//
// Save logs and returns an error on failure but never panics: a
// PersistenceFailure (spec §7) must not abort the in-memory mutation that
// already happened.
func (s *Store) Save(state *State) error {
	var buf bytes.Buffer

	for _, v := range []interface{}{state.Chain, state.Pending, state.Peers} {
		encoded, err := json.Marshal(v)
		if err != nil {
			log.Error("failed to encode state", "error", err)
			return fmt.Errorf("persistence: encode: %w", err)
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".blockchain-*.tmp")
	if err != nil {
		log.Error("failed to create temp state file", "error", err)
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		log.Error("failed to write temp state file", "error", err)
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		log.Error("failed to close temp state file", "error", err)
		return fmt.Errorf("persistence: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		log.Error("failed to rename temp state file into place", "error", err)
		return fmt.Errorf("persistence: rename into place: %w", err)
	}

	return nil
}
