package cdn_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/testutil/mockcdn"
)

func newTestClient(t *testing.T) (*cdn.Client, *mockcdn.Server) {
	t.Helper()
	mock := mockcdn.New()
	t.Cleanup(mock.Close)
	return cdn.NewClient("test-key", cdn.WithBaseURL(mock.URL)), mock
}

func TestCreateZone(t *testing.T) {
	client, _ := newTestClient(t)

	zone, err := client.CreateZone(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("CreateZone() error: %v", err)
	}
	if zone.ID == "" {
		t.Error("zone id is empty")
	}
	if zone.Domain != "example.com" {
		t.Errorf("Domain = %q, want %q", zone.Domain, "example.com")
	}
	if len(zone.Nameservers) == 0 {
		t.Error("zone has no nameservers; the owner cannot delegate")
	}
}

func TestCreateZoneDuplicate(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.CreateZone(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}

	_, err := client.CreateZone(ctx, "example.com")
	var apiErr *cdn.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("duplicate create: got %v, want *APIError", err)
	}
	if apiErr.StatusCode != 409 {
		t.Errorf("StatusCode = %d, want 409", apiErr.StatusCode)
	}
	if !apiErr.Permanent() {
		t.Error("409 should be permanent")
	}
}

func TestGetZoneStatus(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zone, err := client.CreateZone(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}

	status, err := client.GetZoneStatus(ctx, zone.ID)
	if err != nil {
		t.Fatalf("GetZoneStatus() error: %v", err)
	}
	if status.State != cdn.StatePending {
		t.Errorf("new zone State = %v, want StatePending", status.State)
	}

	mock.SetZoneStatus(zone.ID, "active")
	status, err = client.GetZoneStatus(ctx, zone.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != cdn.StateActive {
		t.Errorf("State = %v, want StateActive", status.State)
	}
}

func TestGetZoneStatusUnknown(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "suspended")

	status, err := client.GetZoneStatus(ctx, zoneID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != cdn.StateUnknown {
		t.Errorf("State = %v, want StateUnknown", status.State)
	}
	if status.Raw != "suspended" {
		t.Errorf("Raw = %q, want the provider's literal status", status.Raw)
	}
}

func TestGetZoneStatusNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetZoneStatus(context.Background(), "zone-missing")
	if !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeployChallengeRuleUpsert(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "active")

	expr := `(cf.bot_management.score lt 30) and (http.request.headers["x-botgate-bypass"][0] ne "s")`
	ref1, err := client.DeployChallengeRule(ctx, zoneID, expr)
	if err != nil {
		t.Fatalf("DeployChallengeRule() error: %v", err)
	}
	if ref1 == "" {
		t.Fatal("empty rule ref")
	}

	// Redeploying upserts: same reference, not a second rule.
	ref2, err := client.DeployChallengeRule(ctx, zoneID, expr)
	if err != nil {
		t.Fatalf("redeploy error: %v", err)
	}
	if ref2 != ref1 {
		t.Errorf("redeploy ref = %q, want %q", ref2, ref1)
	}
	if got := mock.ChallengeExpression(zoneID); !strings.Contains(got, "x-botgate-bypass") {
		t.Errorf("deployed expression = %q", got)
	}
}

func TestDeployAllowRule(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "active")

	ref, err := client.DeployAllowRule(ctx, zoneID, "198.51.100.7")
	if err != nil {
		t.Fatalf("DeployAllowRule() error: %v", err)
	}
	if !mock.HasRule(ref) {
		t.Error("allow rule not recorded on the provider")
	}
	if mock.AllowRuleForIP("198.51.100.7") != ref {
		t.Error("allow rule not attributed to the IP")
	}
}

func TestRetractRule(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "active")
	ref, err := client.DeployAllowRule(ctx, zoneID, "198.51.100.7")
	if err != nil {
		t.Fatal(err)
	}

	if err := client.RetractRule(ctx, zoneID, ref); err != nil {
		t.Fatalf("RetractRule() error: %v", err)
	}
	if mock.HasRule(ref) {
		t.Error("rule still deployed after retraction")
	}

	// Retracting an already-gone rule surfaces ErrNotFound; sweepers treat it
	// as success.
	if err := client.RetractRule(ctx, zoneID, ref); !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("second retract: got %v, want ErrNotFound", err)
	}
}

func TestDeployFailure(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "active")
	mock.FailDeploys(true)

	_, err := client.DeployAllowRule(ctx, zoneID, "198.51.100.7")
	var apiErr *cdn.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.Permanent() {
		t.Error("503 must not be classified permanent")
	}
}

func TestPermanentRejection(t *testing.T) {
	client, mock := newTestClient(t)
	ctx := context.Background()

	zoneID := mock.AddZone("example.com", "active")
	mock.RejectDeploys(422)

	_, err := client.DeployChallengeRule(ctx, zoneID, "expr")
	var apiErr *cdn.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if !apiErr.Permanent() {
		t.Error("422 should be classified permanent")
	}
}

func TestAPIErrorPermanent(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, true},
		{404, true},
		{422, true},
		{429, false},
		{500, false},
		{503, false},
	}

	for _, tt := range tests {
		e := &cdn.APIError{StatusCode: tt.status}
		if got := e.Permanent(); got != tt.want {
			t.Errorf("Permanent() for %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}
