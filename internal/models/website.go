package models

import (
	"regexp"
	"strings"
	"time"
)

// Website is a target site configuration. The control plane only ever mutates
// its IsActive flag; everything else is operator-managed configuration served
// to the worker engine.
type Website struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Slug             string    `json:"slug" db:"slug"`
	BaseURL          string    `json:"base_url" db:"base_url"`
	Description      *string   `json:"description,omitempty" db:"description"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	Headers          JSONMap   `json:"headers,omitempty" db:"headers"`
	Cookies          JSONMap   `json:"cookies,omitempty" db:"cookies"`
	Timeout          int       `json:"timeout" db:"timeout"`
	RetryAttempts    int       `json:"retry_attempts" db:"retry_attempts"`
	RetryDelay       int       `json:"retry_delay" db:"retry_delay"`
	ConcurrencyLimit int       `json:"concurrency_limit" db:"concurrency_limit"`
	MaxJobsPerMinute int       `json:"max_jobs_per_minute" db:"max_jobs_per_minute"`
	Priority         int       `json:"priority" db:"priority"`
	UserAgent        *string   `json:"user_agent,omitempty" db:"user_agent"`
	UseStealth       bool      `json:"use_stealth" db:"use_stealth"`
	UseProxy         bool      `json:"use_proxy" db:"use_proxy"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// QueueName returns the engine-side queue name for this website.
func (w *Website) QueueName() string {
	return "website-" + w.Slug
}

// FullConfig builds the configuration payload served to the worker engine.
func (w *Website) FullConfig() JSONMap {
	cfg := JSONMap{
		"id":                  w.ID,
		"name":                w.Name,
		"slug":                w.Slug,
		"base_url":            w.BaseURL,
		"headers":             w.Headers,
		"cookies":             w.Cookies,
		"timeout":             w.Timeout,
		"retry_attempts":      w.RetryAttempts,
		"retry_delay":         w.RetryDelay,
		"concurrency_limit":   w.ConcurrencyLimit,
		"max_jobs_per_minute": w.MaxJobsPerMinute,
		"priority":            w.Priority,
		"use_stealth":         w.UseStealth,
		"use_proxy":           w.UseProxy,
	}
	if w.Headers == nil {
		cfg["headers"] = JSONMap{}
	}
	if w.Cookies == nil {
		cfg["cookies"] = JSONMap{}
	}
	if w.UserAgent != nil {
		cfg["user_agent"] = *w.UserAgent
	}
	return cfg
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a website name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
