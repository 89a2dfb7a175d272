package api

import "github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rails   int    `json:"rails"`
}

type RailsResponse struct {
	Rails []guardrail.RailInfo `json:"rails"`
}
