package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// Transaction is the subset of an on-chain transaction this core reads.
// Value is the hex quantity the node returns (e.g. "0xde0b6b3a7640000").
type Transaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// Amount parses the transferred value into an integer in the smallest unit.
func (t *Transaction) Amount() (*big.Int, error) {
	return parseQuantity(t.Value)
}

// Receipt is the execution receipt for a transaction.
// Status is "0x1" for success, "0x0" for a reverted execution.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
}

// Succeeded reports whether the transaction executed successfully on-chain.
func (r *Receipt) Succeeded() bool {
	v, err := parseQuantity(r.Status)
	return err == nil && v.Sign() == 1
}

// parseQuantity decodes a 0x-prefixed hex quantity.
func parseQuantity(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("chain: quantity %q missing 0x prefix", s)
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("chain: invalid hex quantity %q", s)
	}
	return v, nil
}

// IsTxRef reports whether s looks like a transaction hash: 0x followed by
// 64 hex characters. Used for synchronous validation before any RPC call.
func IsTxRef(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		isDigit := c >= '0' && c <= '9'
		isHexLower := c >= 'a' && c <= 'f'
		isHexUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isHexLower && !isHexUpper {
			return false
		}
	}
	return true
}
