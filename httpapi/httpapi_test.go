package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/simplechain-go/simplechain/config"
	"github.com/simplechain-go/simplechain/node"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Port = 5200

	n, err := node.New(cfg)
	if err != nil {
		t.Fatalf("node.New() error = %v", err)
	}
	return httptest.NewServer(NewHandler(n))
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func TestFreshNodeChainAndBalance(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/chain")
	if err != nil {
		t.Fatalf("GET /chain error = %v", err)
	}
	var chain chainResponse
	decodeJSON(t, resp, &chain)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /chain status = %d, want 200", resp.StatusCode)
	}
	if chain.Length != 1 || chain.Chain[0].Proof != 100 || chain.Chain[0].PreviousHash != "" {
		t.Errorf("chain = %+v, want single genesis block with proof 100", chain)
	}

	resp, err = http.Get(server.URL + "/balance")
	if err != nil {
		t.Fatalf("GET /balance error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("GET /balance status (no wallet) = %d, want 500", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWalletAndTransactionAndMineFlow(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/wallet", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /wallet error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /wallet status = %d, want 201", resp.StatusCode)
	}
	var created walletResponse
	decodeJSON(t, resp, &created)
	if created.PublicKey == "" || created.Funds != 0 {
		t.Errorf("wallet response = %+v, want non-empty public key and 0 funds", created)
	}

	txReq, _ := json.Marshal(submitTransactionRequest{Recipient: "bob", Amount: 2.0})
	resp, err = http.Post(server.URL+"/transaction", "application/json", bytes.NewReader(txReq))
	if err != nil {
		t.Fatalf("POST /transaction error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /transaction status = %d, want 201", resp.StatusCode)
	}
	var submitted transactionResponse
	decodeJSON(t, resp, &submitted)
	if submitted.Funds != -2.0 {
		t.Errorf("funds after submitting = %v, want -2.0", submitted.Funds)
	}

	resp, err = http.Get(server.URL + "/transactions")
	if err != nil {
		t.Fatalf("GET /transactions error = %v", err)
	}
	var pending []json.RawMessage
	decodeJSON(t, resp, &pending)
	if len(pending) != 1 {
		t.Errorf("pending transactions = %d, want 1", len(pending))
	}

	resp, err = http.Post(server.URL+"/mine", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /mine error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /mine status = %d, want 201", resp.StatusCode)
	}
	var mined mineResponse
	decodeJSON(t, resp, &mined)
	if mined.Funds != 8.0 {
		t.Errorf("funds after mining = %v, want 8.0", mined.Funds)
	}
	if mined.Block.Index != 1 {
		t.Errorf("mined block index = %d, want 1", mined.Block.Index)
	}

	resp, err = http.Get(server.URL + "/transactions")
	if err != nil {
		t.Fatalf("GET /transactions error = %v", err)
	}
	decodeJSON(t, resp, &pending)
	if len(pending) != 0 {
		t.Errorf("pending transactions after mining = %d, want 0", len(pending))
	}
}

func TestSubmitTransactionWithoutWalletReturns400(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	txReq, _ := json.Marshal(submitTransactionRequest{Recipient: "bob", Amount: 1.0})
	resp, err := http.Post(server.URL+"/transaction", "application/json", bytes.NewReader(txReq))
	if err != nil {
		t.Fatalf("POST /transaction error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubmitTransactionMissingRecipientReturns400(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/wallet", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /wallet error = %v", err)
	}
	resp.Body.Close()

	body, _ := json.Marshal(map[string]float64{"amount": 1})
	resp, err = http.Post(server.URL+"/transaction", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /transaction error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing recipient", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPeerNodeLifecycle(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	body, _ := json.Marshal(addPeerRequest{Node: "127.0.0.1:5300"})
	resp, err := http.Post(server.URL+"/node", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /node error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /node status = %d, want 201", resp.StatusCode)
	}
	var peers peersResponse
	decodeJSON(t, resp, &peers)
	if len(peers.AllNodes) != 1 {
		t.Fatalf("all_nodes = %v, want 1 entry", peers.AllNodes)
	}

	resp, err = http.Get(server.URL + "/nodes")
	if err != nil {
		t.Fatalf("GET /nodes error = %v", err)
	}
	decodeJSON(t, resp, &peers)
	if len(peers.AllNodes) != 1 {
		t.Fatalf("GET /nodes all_nodes = %v, want 1 entry", peers.AllNodes)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/node/127.0.0.1:5300", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /node error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE /node status = %d, want 200", resp.StatusCode)
	}
	decodeJSON(t, resp, &peers)
	if len(peers.AllNodes) != 0 {
		t.Errorf("all_nodes after delete = %v, want empty", peers.AllNodes)
	}
}

func TestResolveConflictsWithNoPeersReportsFalse(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/resolveConflicts", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /resolveConflicts error = %v", err)
	}
	var result resolveResponse
	decodeJSON(t, resp, &result)
	if result.Replaced {
		t.Error("resolveConflicts with no peers should report replaced=false")
	}
}
