package models

import "time"

// CaptchaService is a configured CAPTCHA solving provider. One service may be
// flagged as the default; otherwise the highest-priority active service wins.
type CaptchaService struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Provider         string    `json:"provider" db:"provider"`
	APIKey           string    `json:"api_key" db:"api_key"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	IsDefault        bool      `json:"is_default" db:"is_default"`
	Priority         int       `json:"priority" db:"priority"`
	SupportedTypes   StringList `json:"supported_types,omitempty" db:"supported_types"`
	SuccessCount     int       `json:"success_count" db:"success_count"`
	FailureCount     int       `json:"failure_count" db:"failure_count"`
	AverageSolveTime *float64  `json:"average_solve_time,omitempty" db:"average_solve_time"`
	CostPerSolve     *float64  `json:"cost_per_solve,omitempty" db:"cost_per_solve"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// SuccessRate returns the solve success percentage, or zero with no history.
func (c *CaptchaService) SuccessRate() float64 {
	total := c.SuccessCount + c.FailureCount
	if total == 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(total) * 100.0
}

// NextAverageSolveTime folds a new solve duration into the rolling average.
// The average is weighted by the number of successes recorded so far, so it
// must be computed before the success counter is incremented.
func (c *CaptchaService) NextAverageSolveTime(solveTime float64) float64 {
	if c.AverageSolveTime == nil || c.SuccessCount == 0 {
		return solveTime
	}
	n := float64(c.SuccessCount)
	return (*c.AverageSolveTime*n + solveTime) / (n + 1)
}

// SupportsType reports whether the service can solve the given CAPTCHA type.
// A service with no declared types is assumed to handle everything.
func (c *CaptchaService) SupportsType(captchaType string) bool {
	if len(c.SupportedTypes) == 0 {
		return true
	}
	return c.SupportedTypes.Contains(captchaType)
}
