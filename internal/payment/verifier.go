// Package payment verifies claimed on-chain payments against an expected
// recipient and amount. Verification is read-only: it never consumes the
// proof, so it can be called speculatively any number of times. Consuming
// the proof is the grant manager's job.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/fenceline/botgate/internal/chain"
)

// Reason classifies why a payment was judged invalid.
type Reason string

const (
	// ReasonNotFound: the node does not know the transaction.
	ReasonNotFound Reason = "not_found"
	// ReasonWrongRecipient: the payment went to a different address.
	ReasonWrongRecipient Reason = "wrong_recipient"
	// ReasonInsufficient: the transferred amount is below the required minimum.
	ReasonInsufficient Reason = "insufficient_payment"
	// ReasonFailedOnChain: the transaction exists but its execution reverted.
	ReasonFailedOnChain Reason = "failed_onchain"
	// ReasonNetworkError: verification could not be completed. Unlike the
	// other reasons this is retryable and says nothing about the payment.
	ReasonNetworkError Reason = "network_error"
)

// Expected describes the payment a caller must have made.
type Expected struct {
	Recipient string
	MinAmount *big.Int // smallest unit (wei)
}

// Result is the outcome of one verification.
type Result struct {
	Valid  bool
	Reason Reason
	Detail string
}

// Retryable reports whether the same proof could still verify later.
// Only network errors qualify; every other rejection is definitive.
func (r Result) Retryable() bool {
	return !r.Valid && r.Reason == ReasonNetworkError
}

// ChainReader is the blockchain collaborator contract.
type ChainReader interface {
	GetTransaction(ctx context.Context, ref string) (*chain.Transaction, error)
	GetReceipt(ctx context.Context, ref string) (*chain.Receipt, error)
}

// Verifier checks payment proofs. It holds no mutable state.
type Verifier struct {
	chain  ChainReader
	logger *slog.Logger
}

// NewVerifier creates a Verifier backed by the given chain reader.
func NewVerifier(reader ChainReader, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{chain: reader, logger: logger}
}

// Verify checks the transaction behind txRef against expected.
//
// Order of checks: existence, recipient, amount, execution receipt. Any RPC
// failure along the way yields ReasonNetworkError so callers can distinguish
// "could not verify" from "verified bad".
func (v *Verifier) Verify(ctx context.Context, txRef string, expected Expected) Result {
	tx, err := v.chain.GetTransaction(ctx, txRef)
	if err != nil {
		v.logger.Warn("payment verification rpc failure", "tx", txRef, "error", err)
		return Result{Reason: ReasonNetworkError, Detail: "could not reach blockchain node"}
	}
	if tx == nil {
		return Result{Reason: ReasonNotFound, Detail: "transaction not found"}
	}

	if !strings.EqualFold(tx.To, expected.Recipient) {
		return Result{
			Reason: ReasonWrongRecipient,
			Detail: fmt.Sprintf("payment sent to %s, expected %s", tx.To, expected.Recipient),
		}
	}

	amount, err := tx.Amount()
	if err != nil {
		v.logger.Warn("payment has unparseable value", "tx", txRef, "error", err)
		return Result{Reason: ReasonNetworkError, Detail: "could not decode transaction value"}
	}
	if amount.Cmp(expected.MinAmount) < 0 {
		// Both amounts go into the detail so the paying bot can see exactly
		// how short the payment was.
		return Result{
			Reason: ReasonInsufficient,
			Detail: fmt.Sprintf("sent %s wei, required at least %s wei", amount, expected.MinAmount),
		}
	}

	receipt, err := v.chain.GetReceipt(ctx, txRef)
	if err != nil {
		v.logger.Warn("payment receipt rpc failure", "tx", txRef, "error", err)
		return Result{Reason: ReasonNetworkError, Detail: "could not reach blockchain node"}
	}
	if receipt == nil || !receipt.Succeeded() {
		return Result{Reason: ReasonFailedOnChain, Detail: "transaction failed on-chain"}
	}

	return Result{Valid: true}
}
