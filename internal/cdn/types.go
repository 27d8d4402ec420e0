package cdn

import "time"

// Zone represents a domain's configuration unit on the CDN provider.
type Zone struct {
	ID          string    `json:"Id"`
	Domain      string    `json:"Domain"`
	Status      string    `json:"Status"` // raw provider status string
	Nameservers []string  `json:"Nameservers"`
	DateCreated time.Time `json:"DateCreated"`
}

// Rule represents a deployed firewall rule.
type Rule struct {
	ID         string `json:"Id"`
	Action     string `json:"Action"` // "challenge" or "allow"
	Expression string `json:"Expression,omitempty"`
	IP         string `json:"Ip,omitempty"`
}

// ZoneState is the closed set of delegation states this core acts on.
// Anything the provider returns outside pending/active is preserved as
// StateUnknown with the raw string, so the unrecognized branch is an
// explicit case rather than a string-comparison fallthrough.
type ZoneState int

const (
	// StatePending means the domain's nameservers do not point at the CDN yet.
	StatePending ZoneState = iota
	// StateActive means delegation is detected and rules can be enforced.
	StateActive
	// StateUnknown is any provider status this core does not recognize.
	StateUnknown
)

// ZoneStatus is the decoded delegation status of a zone.
type ZoneStatus struct {
	State ZoneState
	Raw   string
}

// parseZoneStatus decodes the provider's status string in one place.
func parseZoneStatus(raw string) ZoneStatus {
	switch raw {
	case "pending":
		return ZoneStatus{State: StatePending, Raw: raw}
	case "active":
		return ZoneStatus{State: StateActive, Raw: raw}
	default:
		return ZoneStatus{State: StateUnknown, Raw: raw}
	}
}

// CreateZoneRequest is the request body for zone creation.
type CreateZoneRequest struct {
	Domain string `json:"Domain"`
}

// deployRuleRequest is the request body for challenge-rule deployment.
type deployRuleRequest struct {
	Expression string `json:"Expression"`
}

// allowRuleRequest is the request body for IP allow-rule deployment.
type allowRuleRequest struct {
	IP string `json:"Ip"`
}
