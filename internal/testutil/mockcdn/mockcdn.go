// Package mockcdn provides a mock CDN/firewall API server for testing.
// It implements the zone and rule endpoints the cdn client speaks, plus
// in-process controls for zone status, failure injection, and deploy
// counters so tests can assert exactly-once behavior.
package mockcdn

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// zone is the mock's internal zone record.
type zone struct {
	ID          string
	Domain      string
	Status      string
	Nameservers []string
	DateCreated time.Time

	// challengeRule is the single upserted challenge rule, empty if none.
	challengeRule string
	expression    string
}

// rule is a deployed rule, challenge or allow.
type rule struct {
	ID         string
	ZoneID     string
	Action     string
	Expression string
	IP         string
}

// Server is a mock CDN API server.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	zones      map[string]*zone
	rules      map[string]*rule
	nextZoneID int
	nextRuleID int

	// counters for exactly-once assertions
	challengeDeploys map[string]int // zoneID -> count
	allowDeploys     int
	retractions      int

	// failure injection
	failDeploys  bool
	failRetracts bool
	rejectStatus int // non-zero: respond to deploys with this status
}

// New creates a started mock CDN server. Callers must Close it.
func New() *Server {
	s := &Server{
		zones:            make(map[string]*zone),
		rules:            make(map[string]*rule),
		nextZoneID:       1,
		nextRuleID:       1,
		challengeDeploys: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Post("/zones", s.handleCreateZone)
	r.Get("/zones/{id}", s.handleGetZone)
	r.Put("/zones/{id}/rules/challenge", s.handleDeployChallenge)
	r.Post("/zones/{id}/rules/allow", s.handleDeployAllow)
	r.Delete("/zones/{id}/rules/{ref}", s.handleRetractRule)

	s.Server = httptest.NewServer(r)
	return s
}

// SetZoneStatus changes a zone's delegation status. Use it to simulate the
// provider detecting nameserver delegation, or to report an arbitrary
// status string.
func (s *Server) SetZoneStatus(zoneID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z, ok := s.zones[zoneID]; ok {
		z.Status = status
	}
}

// AddZone seeds a zone directly, bypassing the API. Returns the zone ID.
func (s *Server) AddZone(domain, status string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.newZoneLocked(domain)
	z.Status = status
	return z.ID
}

// ChallengeDeploys reports how many challenge-rule deploys hit a zone.
func (s *Server) ChallengeDeploys(zoneID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengeDeploys[zoneID]
}

// AllowDeploys reports the total number of allow-rule deploys.
func (s *Server) AllowDeploys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowDeploys
}

// Retractions reports the total number of successful rule retractions.
func (s *Server) Retractions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retractions
}

// ChallengeExpression returns the zone's currently deployed challenge
// expression, empty if none.
func (s *Server) ChallengeExpression(zoneID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z, ok := s.zones[zoneID]; ok {
		return z.expression
	}
	return ""
}

// HasRule reports whether a rule reference is currently deployed.
func (s *Server) HasRule(ruleRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rules[ruleRef]
	return ok
}

// AllowRuleForIP returns the reference of the deployed allow rule for ip,
// empty if none.
func (s *Server) AllowRuleForIP(ip string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, r := range s.rules {
		if r.Action == "allow" && r.IP == ip {
			return ref
		}
	}
	return ""
}

// FailDeploys makes all rule deployments return 503 until called with false.
func (s *Server) FailDeploys(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDeploys = fail
}

// FailRetracts makes all rule retractions return 503 until called with false.
func (s *Server) FailRetracts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRetracts = fail
}

// RejectDeploys makes rule deployments fail with the given HTTP status and a
// structured error body. Pass 0 to clear.
func (s *Server) RejectDeploys(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectStatus = status
}

func (s *Server) newZoneLocked(domain string) *zone {
	id := fmt.Sprintf("zone-%d", s.nextZoneID)
	s.nextZoneID++
	z := &zone{
		ID:          id,
		Domain:      domain,
		Status:      "pending",
		Nameservers: []string{"ns1.fenceline.dev", "ns2.fenceline.dev"},
		DateCreated: time.Now().UTC(),
	}
	s.zones[id] = z
	return z
}

func (s *Server) newRuleLocked(zoneID, action, expression, ip string) *rule {
	ref := fmt.Sprintf("rule-%d", s.nextRuleID)
	s.nextRuleID++
	r := &rule{ID: ref, ZoneID: zoneID, Action: action, Expression: expression, IP: ip}
	s.rules[ref] = r
	return r
}

// zoneJSON is the wire form of a zone.
type zoneJSON struct {
	ID          string    `json:"Id"`
	Domain      string    `json:"Domain"`
	Status      string    `json:"Status"`
	Nameservers []string  `json:"Nameservers"`
	DateCreated time.Time `json:"DateCreated"`
}

// ruleJSON is the wire form of a rule.
type ruleJSON struct {
	ID         string `json:"Id"`
	Action     string `json:"Action"`
	Expression string `json:"Expression,omitempty"`
	IP         string `json:"Ip,omitempty"`
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"Domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Domain is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, z := range s.zones {
		if z.Domain == req.Domain {
			writeError(w, http.StatusConflict, "conflict", "Zone already exists")
			return
		}
	}

	z := s.newZoneLocked(req.Domain)
	writeJSON(w, http.StatusCreated, zoneJSON{
		ID: z.ID, Domain: z.Domain, Status: z.Status,
		Nameservers: z.Nameservers, DateCreated: z.DateCreated,
	})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.zones[id]
	if !ok {
		writeError(w, http.StatusNotFound, "zone.not_found", "The requested zone was not found")
		return
	}
	writeJSON(w, http.StatusOK, zoneJSON{
		ID: z.ID, Domain: z.Domain, Status: z.Status,
		Nameservers: z.Nameservers, DateCreated: z.DateCreated,
	})
}

// handleDeployChallenge upserts the zone's single challenge rule: a repeat
// deploy replaces the expression and returns the same rule reference.
func (s *Server) handleDeployChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Expression string `json:"Expression"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Expression is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDeploys {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
		return
	}
	if s.rejectStatus != 0 {
		writeError(w, s.rejectStatus, "rule.rejected", "The rule was rejected")
		return
	}

	z, ok := s.zones[id]
	if !ok {
		writeError(w, http.StatusNotFound, "zone.not_found", "The requested zone was not found")
		return
	}

	s.challengeDeploys[id]++

	if z.challengeRule != "" {
		rl := s.rules[z.challengeRule]
		rl.Expression = req.Expression
		z.expression = req.Expression
		writeJSON(w, http.StatusOK, ruleJSON{ID: rl.ID, Action: "challenge", Expression: rl.Expression})
		return
	}

	rl := s.newRuleLocked(id, "challenge", req.Expression, "")
	z.challengeRule = rl.ID
	z.expression = req.Expression
	writeJSON(w, http.StatusCreated, ruleJSON{ID: rl.ID, Action: "challenge", Expression: rl.Expression})
}

func (s *Server) handleDeployAllow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		IP string `json:"Ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Ip is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDeploys {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
		return
	}
	if s.rejectStatus != 0 {
		writeError(w, s.rejectStatus, "rule.rejected", "The rule was rejected")
		return
	}

	if _, ok := s.zones[id]; !ok {
		writeError(w, http.StatusNotFound, "zone.not_found", "The requested zone was not found")
		return
	}

	s.allowDeploys++
	rl := s.newRuleLocked(id, "allow", "", req.IP)
	writeJSON(w, http.StatusCreated, ruleJSON{ID: rl.ID, Action: "allow", IP: rl.IP})
}

func (s *Server) handleRetractRule(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRetracts {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
		return
	}

	rl, ok := s.rules[ref]
	if !ok {
		writeError(w, http.StatusNotFound, "rule.not_found", "The requested rule was not found")
		return
	}

	delete(s.rules, ref)
	if z, ok := s.zones[rl.ZoneID]; ok && z.challengeRule == ref {
		z.challengeRule = ""
		z.expression = ""
	}
	s.retractions++

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, errorKey, message string) {
	writeJSON(w, status, struct {
		ErrorKey string `json:"ErrorKey"`
		Message  string `json:"Message"`
	}{ErrorKey: errorKey, Message: message})
}
