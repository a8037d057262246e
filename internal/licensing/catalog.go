package licensing

import "time"

const (
	ModuleCRM            = "crm"
	ModuleFinance        = "finance"
	ModuleHR             = "hr"
	ModuleInventory      = "inventory"
	ModuleMarketing      = "marketing"
	ModuleEcommerce      = "ecommerce"
	ModuleVoiceAgents    = "voice-agents"
	ModuleWebsiteBuilder = "website-builder"
	ModuleAIStudio       = "ai-studio"
	ModuleAnalytics      = "analytics"
	ModuleProjects       = "projects"
	ModuleCommunication  = "communication"
)

// Catalog lists every module a tenant can be licensed for, in display order.
var Catalog = []string{
	ModuleCRM,
	ModuleFinance,
	ModuleHR,
	ModuleInventory,
	ModuleMarketing,
	ModuleEcommerce,
	ModuleVoiceAgents,
	ModuleWebsiteBuilder,
	ModuleAIStudio,
	ModuleAnalytics,
	ModuleProjects,
	ModuleCommunication,
}

func KnownModule(module string) bool {
	for _, known := range Catalog {
		if known == module {
			return true
		}
	}
	return false
}

const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
	TenantTrial     = "trial"
)

type License struct {
	TenantID  string     `json:"tenant_id"`
	Module    string     `json:"module"`
	Enabled   bool       `json:"enabled"`
	Seats     int        `json:"seats"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Active reports whether the license grants access at now.
func (l License) Active(now time.Time) bool {
	if !l.Enabled {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

type TenantState struct {
	TenantID string
	Status   string
	Licenses map[string]License
}

// ModuleStatus is one catalog row as seen by a tenant.
type ModuleStatus struct {
	Module    string     `json:"module"`
	Licensed  bool       `json:"licensed"`
	Enabled   bool       `json:"enabled"`
	Seats     int        `json:"seats"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Modules renders the whole catalog for state.
func Modules(state TenantState, now time.Time) []ModuleStatus {
	out := make([]ModuleStatus, 0, len(Catalog))
	for _, module := range Catalog {
		status := ModuleStatus{Module: module}
		if license, ok := state.Licenses[module]; ok {
			status.Licensed = true
			status.Enabled = state.Status != TenantSuspended && license.Active(now)
			status.Seats = license.Seats
			status.ExpiresAt = license.ExpiresAt
		}
		out = append(out, status)
	}
	return out
}
