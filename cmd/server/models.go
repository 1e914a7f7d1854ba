package main

import (
	"time"

	"github.com/liamcoop/greenscore/internal/logger"
	"github.com/liamcoop/greenscore/recommend"
	"github.com/liamcoop/greenscore/scoring"
)

// API request and response bodies. The assess request body is the raw
// applicant record and is decoded into a map, see handleAssess.

// AssessResponse is returned by POST /api/v1/assess.
type AssessResponse struct {
	Analysis        *scoring.Result `json:"analysis"`
	Recommendations []string        `json:"recommendations"`
	Status          string          `json:"status"`
}

// RuleRequest creates or replaces a recommendation rule. Active defaults to
// true when omitted.
type RuleRequest struct {
	Name           string `json:"name"`
	Expression     string `json:"expression"`
	Recommendation string `json:"recommendation"`
	Priority       int    `json:"priority"`
	Active         *bool  `json:"active,omitempty"`
}

// RulesListResponse is returned by GET /api/v1/rules.
type RulesListResponse struct {
	Rules []*recommend.Rule `json:"rules"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status      string     `json:"status"`
	ModelLoaded bool       `json:"model_loaded"`
	ArtifactID  string     `json:"artifact_id,omitempty"`
	LoadedAt    *time.Time `json:"loaded_at,omitempty"`
	Database    string     `json:"database,omitempty"`
}

// ReloadResponse is returned by POST /api/v1/model/reload.
type ReloadResponse struct {
	Status     string     `json:"status"`
	ArtifactID string     `json:"artifact_id"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Counters logger.Stats `json:"counters"`
	Rules    int          `json:"rules"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
