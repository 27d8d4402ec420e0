// Package chain provides a JSON-RPC client for reading transactions from a
// blockchain node. It only verifies already-broadcast transactions; it never
// signs or submits anything.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Client is a JSON-RPC 2.0 client for a blockchain node.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new JSON-RPC client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("chain: rpc error %d: %s", e.Code, e.Message)
}

// GetTransaction fetches a transaction by hash.
// Returns (nil, nil) when the node does not know the transaction.
func (c *Client) GetTransaction(ctx context.Context, ref string) (*Transaction, error) {
	var tx Transaction
	found, err := c.call(ctx, "eth_getTransactionByHash", []any{ref}, &tx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &tx, nil
}

// GetReceipt fetches the execution receipt for a transaction.
// Returns (nil, nil) when no receipt exists (unknown or still pending).
func (c *Client) GetReceipt(ctx context.Context, ref string) (*Receipt, error) {
	var receipt Receipt
	found, err := c.call(ctx, "eth_getTransactionReceipt", []any{ref}, &receipt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &receipt, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// call executes one RPC method. Returns found=false when the node returned
// a null result, which for the read methods above means "does not exist".
func (c *Client) call(ctx context.Context, method string, params []any, result any) (bool, error) {
	body, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("chain: rpc request failed (status %d)", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return false, fmt.Errorf("chain: failed to decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return false, rpcResp.Error
	}

	if len(rpcResp.Result) == 0 || bytes.Equal(rpcResp.Result, []byte("null")) {
		return false, nil
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return false, fmt.Errorf("chain: failed to decode %s result: %w", method, err)
	}
	return true, nil
}
