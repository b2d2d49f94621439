package models

import (
	"fmt"
	"time"
)

// Proxy health thresholds for automatic disablement. A proxy with enough
// recorded outcomes and a success rate below the floor is pulled from
// rotation.
const (
	ProxyMinOutcomes     = 10
	ProxyMinSuccessRate  = 20.0
	ProxyDefaultProtocol = "http"
)

// Proxy is an upstream proxy endpoint available to workers. Outcome counters
// feed the health-based selection and auto-disable policy.
type Proxy struct {
	ID           int64      `json:"id" db:"id"`
	Host         string     `json:"host" db:"host"`
	Port         int        `json:"port" db:"port"`
	Username     *string    `json:"username,omitempty" db:"username"`
	Password     *string    `json:"password,omitempty" db:"password"`
	Protocol     string     `json:"protocol" db:"protocol"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	Country      *string    `json:"country,omitempty" db:"country"`
	SuccessCount int        `json:"success_count" db:"success_count"`
	FailureCount int        `json:"failure_count" db:"failure_count"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// URL renders the proxy as a connection URL, embedding credentials when set.
func (p *Proxy) URL() string {
	protocol := p.Protocol
	if protocol == "" {
		protocol = ProxyDefaultProtocol
	}
	if p.Username != nil && *p.Username != "" && p.Password != nil {
		return fmt.Sprintf("%s://%s:%s@%s:%d", protocol, *p.Username, *p.Password, p.Host, p.Port)
	}
	return fmt.Sprintf("%s://%s:%d", protocol, p.Host, p.Port)
}

// TotalOutcomes returns the number of recorded success and failure outcomes.
func (p *Proxy) TotalOutcomes() int {
	return p.SuccessCount + p.FailureCount
}

// SuccessRate returns the success percentage over all recorded outcomes. A
// proxy with no history has rate 0: it has proven nothing yet and must not
// outrank a proxy with recorded successes.
func (p *Proxy) SuccessRate() float64 {
	total := p.TotalOutcomes()
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total) * 100.0
}

// ShouldDisable reports whether the proxy has accumulated enough failures to
// be pulled from rotation.
func (p *Proxy) ShouldDisable() bool {
	return p.TotalOutcomes() >= ProxyMinOutcomes && p.SuccessRate() < ProxyMinSuccessRate
}
