//go:build e2e

package e2e

import (
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestE2E_ProtectionLifecycle walks a domain from registration through
// delegation to active protection.
func TestE2E_ProtectionLifecycle(t *testing.T) {
	s := setup(t, stackOptions{})

	// 1. Owner registers a domain.
	code, body := s.request(t, "POST", "/api/projects", map[string]string{"domain": "shop.example.com"}, true)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "awaiting_delegation", body["status"])

	projectID := body["project_id"].(string)
	zoneID := body["zone_id"].(string)
	secret := body["bypass_secret"].(string)
	require.True(t, strings.HasPrefix(secret, "bgs_"), "registration must return the plaintext secret")
	require.NotEmpty(t, body["nameservers"])

	// 2. Verification before delegation completes is a no-op.
	code, body = s.request(t, "POST", "/api/projects/"+projectID+"/verify", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pending", body["status"])
	require.Zero(t, s.cdn.ChallengeDeploys(zoneID), "no rule may be deployed before delegation")

	// 3. The owner updates their nameservers; the zone goes active.
	s.cdn.SetZoneStatus(zoneID, "active")

	code, body = s.request(t, "POST", "/api/projects/"+projectID+"/verify", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "protected", body["status"])

	// 4. The deployed challenge embeds this project's bypass secret.
	require.Equal(t, 1, s.cdn.ChallengeDeploys(zoneID))
	expr := s.cdn.ChallengeExpression(zoneID)
	require.Contains(t, expr, "x-botgate-bypass")
	require.Contains(t, expr, secret)

	// 5. Re-verification converges without creating a second rule.
	code, body = s.request(t, "POST", "/api/projects/"+projectID+"/verify", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "protected", body["status"])

	// 6. Reads never show the plaintext again; the reveal endpoint does.
	code, body = s.request(t, "GET", "/api/projects/"+projectID, nil, true)
	require.Equal(t, http.StatusOK, code)
	require.NotEqual(t, secret, body["bypass_secret"])

	code, body = s.request(t, "GET", "/api/projects/"+projectID+"/secret", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, secret, body["bypass_secret"])
}

// TestE2E_PayToAccessLifecycle walks a paid grant from on-chain proof to
// expiry and sweep.
func TestE2E_PayToAccessLifecycle(t *testing.T) {
	s := setup(t, stackOptions{
		grantTTL:      300 * time.Millisecond,
		sweepInterval: 25 * time.Millisecond,
	})

	clientIP := "198.51.100.42"
	proof := txRef(1)
	s.node.AddTransaction(proof, "0xpayer", recipient, big.NewInt(5000), true)

	// 1. A valid payment proof buys a time-boxed grant.
	code, body := s.request(t, "POST", "/api/access",
		map[string]string{"transaction_ref": proof, "client_ip": clientIP}, false)
	require.Equal(t, http.StatusOK, code, "body: %v", body)
	require.NotEmpty(t, body["grant_id"])
	require.Equal(t, clientIP, body["ip"])
	require.Greater(t, body["remaining_ms"].(float64), float64(0))

	ruleRef := s.cdn.AllowRuleForIP(clientIP)
	require.NotEmpty(t, ruleRef, "an allow rule must exist for the paid IP")

	// 2. The grant is visible while active.
	code, body = s.request(t, "GET", "/api/access/"+clientIP, nil, false)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["active"])

	// 3. The same proof cannot buy access twice, for any IP.
	code, body = s.request(t, "POST", "/api/access",
		map[string]string{"transaction_ref": proof, "client_ip": "203.0.113.5"}, false)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "proof_rejected", body["error"])
	require.Empty(t, s.cdn.AllowRuleForIP("203.0.113.5"))

	// 4. The sweeper revokes the grant once the TTL elapses.
	require.Eventually(t, func() bool {
		return !s.cdn.HasRule(ruleRef)
	}, 3*time.Second, 25*time.Millisecond, "expired allow rule was never retracted")

	code, body = s.request(t, "GET", "/api/access/"+clientIP, nil, false)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["active"])

	// 5. A fresh payment restores access after expiry.
	second := txRef(2)
	s.node.AddTransaction(second, "0xpayer", recipient, big.NewInt(5000), true)

	code, body = s.request(t, "POST", "/api/access",
		map[string]string{"transaction_ref": second, "client_ip": clientIP}, false)
	require.Equal(t, http.StatusOK, code, "body: %v", body)
	require.NotEmpty(t, s.cdn.AllowRuleForIP(clientIP))
}

// TestE2E_RejectedPaymentsNeverGrant covers the definitive refusal paths.
func TestE2E_RejectedPaymentsNeverGrant(t *testing.T) {
	s := setup(t, stackOptions{})

	wrongRecipient := txRef(3)
	underpaid := txRef(4)
	reverted := txRef(5)
	s.node.AddTransaction(wrongRecipient, "0xpayer", "0xothervendor", big.NewInt(5000), true)
	s.node.AddTransaction(underpaid, "0xpayer", recipient, big.NewInt(1), true)
	s.node.AddTransaction(reverted, "0xpayer", recipient, big.NewInt(5000), false)

	for name, proof := range map[string]string{
		"wrong recipient": wrongRecipient,
		"underpaid":       underpaid,
		"reverted":        reverted,
		"unknown":         txRef(6),
	} {
		code, body := s.request(t, "POST", "/api/access",
			map[string]string{"transaction_ref": proof, "client_ip": "198.51.100.1"}, false)
		require.Equalf(t, http.StatusForbidden, code, "%s: body %v", name, body)
		require.Equalf(t, "proof_rejected", body["error"], "%s", name)
	}

	require.Empty(t, s.cdn.AllowRuleForIP("198.51.100.1"))
	code, body := s.request(t, "GET", "/api/access/198.51.100.1", nil, false)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["active"])
}

// TestE2E_GrantSurvivesVerifierOutage covers the retryable failure path: a
// node outage must not consume the proof.
func TestE2E_GrantSurvivesVerifierOutage(t *testing.T) {
	s := setup(t, stackOptions{})

	proof := txRef(7)
	s.node.AddTransaction(proof, "0xpayer", recipient, big.NewInt(5000), true)
	s.node.Fail(true)

	code, body := s.request(t, "POST", "/api/access",
		map[string]string{"transaction_ref": proof, "client_ip": "198.51.100.9"}, false)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "collaborator_error", body["error"])

	// Same proof, node back up: the grant goes through.
	s.node.Fail(false)
	code, body = s.request(t, "POST", "/api/access",
		map[string]string{"transaction_ref": proof, "client_ip": "198.51.100.9"}, false)
	require.Equal(t, http.StatusOK, code, "body: %v", body)
}
