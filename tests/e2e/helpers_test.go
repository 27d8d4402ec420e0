//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fenceline/botgate/internal/api"
	"github.com/fenceline/botgate/internal/auth"
	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/chain"
	"github.com/fenceline/botgate/internal/config"
	"github.com/fenceline/botgate/internal/grants"
	"github.com/fenceline/botgate/internal/ledger"
	"github.com/fenceline/botgate/internal/payment"
	"github.com/fenceline/botgate/internal/protect"
	"github.com/fenceline/botgate/internal/storage"
	"github.com/fenceline/botgate/internal/testutil/mockcdn"
	"github.com/fenceline/botgate/internal/testutil/mockchain"
)

const (
	ownerToken = "bgt_e2e_owner_token"
	recipient  = "0xd00d00d00d00d00d00d00d00d00d00d00d00d00d"
)

// stack is the whole service wired against mock collaborators.
type stack struct {
	serviceURL string
	cdn        *mockcdn.Server
	node       *mockchain.Server
	sweeper    *grants.Sweeper
}

type stackOptions struct {
	grantTTL      time.Duration
	sweepInterval time.Duration
}

// setup wires storage, the replay ledger, both mock collaborators, the
// sweeper, and the HTTP server, all torn down with the test.
func setup(t *testing.T, opts stackOptions) *stack {
	t.Helper()

	if opts.grantTTL == 0 {
		opts.grantTTL = time.Minute
	}
	if opts.sweepInterval == 0 {
		opts.sweepInterval = 50 * time.Millisecond
	}

	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := storage.HashToken(ownerToken)
	require.NoError(t, err)
	_, err = store.CreateOwnerToken(context.Background(), "e2e-owner", "e2e", hash)
	require.NoError(t, err)

	mockCDN := mockcdn.New()
	t.Cleanup(mockCDN.Close)
	node := mockchain.New()
	t.Cleanup(node.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	accessZone := mockCDN.AddZone("access.fenceline.dev", "active")

	cfg := &config.Config{
		EncryptionKey:    []byte("0123456789abcdef0123456789abcdef"),
		AccessZoneID:     accessZone,
		PaymentRecipient: recipient,
		PaymentMinWei:    big.NewInt(1000),
		GrantTTL:         opts.grantTTL,
		SweepInterval:    opts.sweepInterval,
		WaitPollStart:    time.Millisecond,
		WaitPollFactor:   2.0,
		WaitPollCap:      10 * time.Millisecond,
		WaitCeiling:      time.Second,
		MinRemaining:     10 * time.Millisecond,
		RateLimitRPS:     1000,
		RateLimitBurst:   1000,
	}

	cdnClient := cdn.NewClient("e2e-key", cdn.WithBaseURL(mockCDN.URL))
	chainClient := chain.NewClient(node.URL)
	verifier := payment.NewVerifier(chainClient, nil)
	replayLedger := ledger.NewWithClient(redisClient)

	machine := protect.NewMachine(store, cdnClient, cfg.EncryptionKey, nil)
	manager := grants.NewManager(store, cdnClient, verifier, replayLedger, cfg.AccessZoneID, grants.Policy{
		GrantTTL:       cfg.GrantTTL,
		WaitPollStart:  cfg.WaitPollStart,
		WaitPollFactor: cfg.WaitPollFactor,
		WaitPollCap:    cfg.WaitPollCap,
		WaitCeiling:    cfg.WaitCeiling,
		MinRemaining:   cfg.MinRemaining,
	}, nil)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	sweeper := grants.NewSweeper(store, cdnClient, cfg.SweepInterval, nil)
	sweeper.Start(sweepCtx)
	t.Cleanup(func() {
		cancelSweep()
		sweeper.Stop()
	})

	handler := api.NewHandler(machine, manager, store, replayLedger, auth.NewValidator(store), cfg, nil)
	server := httptest.NewServer(handler.NewRouter())
	t.Cleanup(server.Close)

	return &stack{serviceURL: server.URL, cdn: mockCDN, node: node, sweeper: sweeper}
}

// request makes an HTTP request against the service, optionally with the
// owner token, and decodes the JSON response.
func (s *stack) request(t *testing.T, method, path string, body any, authd bool) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.serviceURL+path, reader)
	require.NoError(t, err)
	if authd {
		req.Header.Set("AccessKey", ownerToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// txRef builds a distinct well-formed transaction hash per index (0-15).
func txRef(n byte) string {
	const hexdigits = "0123456789abcdef"
	return "0x" + strings.Repeat(string(hexdigits[n%16]), 64)
}
