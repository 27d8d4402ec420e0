// Package mockchain provides a mock blockchain JSON-RPC node for testing.
// It serves eth_getTransactionByHash and eth_getTransactionReceipt over a
// httptest server, with in-process helpers to seed transactions and inject
// node failures.
package mockchain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
)

type transaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
}

// Server is a mock blockchain node.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	transactions map[string]*transaction
	receipts     map[string]*receipt
	failing      bool
	rpcError     *rpcError
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Result  any       `json:"result"`
	Error   *rpcError `json:"error,omitempty"`
}

// New creates a started mock node. Callers must Close it.
func New() *Server {
	s := &Server{
		transactions: make(map[string]*transaction),
		receipts:     make(map[string]*receipt),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleRPC))
	return s
}

// AddTransaction seeds a confirmed transaction. success controls the receipt
// status: true mines it as succeeded, false as reverted.
func (s *Server) AddTransaction(hash, from, to string, valueWei *big.Int, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[hash] = &transaction{
		Hash:  hash,
		From:  from,
		To:    to,
		Value: fmt.Sprintf("0x%x", valueWei),
	}

	status := "0x1"
	if !success {
		status = "0x0"
	}
	s.receipts[hash] = &receipt{TransactionHash: hash, Status: status}
}

// AddPendingTransaction seeds a transaction that is known but has no receipt
// yet, as a node reports a transaction still in the mempool.
func (s *Server) AddPendingTransaction(hash, from, to string, valueWei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[hash] = &transaction{
		Hash:  hash,
		From:  from,
		To:    to,
		Value: fmt.Sprintf("0x%x", valueWei),
	}
}

// Fail makes every RPC call return HTTP 503 until called with false.
func (s *Server) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = fail
}

// FailRPC makes every call return a JSON-RPC error object. Pass empty message
// to clear.
func (s *Server) FailRPC(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		s.rpcError = nil
		return
	}
	s.rpcError = &rpcError{Code: code, Message: message}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	if s.rpcError != nil {
		writeResponse(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: s.rpcError})
		return
	}

	var params []string
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		writeResponse(w, rpcResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &rpcError{Code: -32602, Message: "invalid params"},
		})
		return
	}
	hash := params[0]

	switch req.Method {
	case "eth_getTransactionByHash":
		// Unknown transactions get a null result, not an error.
		var result any
		if tx, ok := s.transactions[hash]; ok {
			result = tx
		}
		writeResponse(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})

	case "eth_getTransactionReceipt":
		var result any
		if rc, ok := s.receipts[hash]; ok {
			result = rc
		}
		writeResponse(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})

	default:
		writeResponse(w, rpcResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &rpcError{Code: -32601, Message: "method not found"},
		})
	}
}

func writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck
	json.NewEncoder(w).Encode(resp)
}
