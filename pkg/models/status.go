package models

import (
	"time"
)

// NoMode is reported while no mode has been bound to the agent.
const NoMode = "NONE"

type AgentStatus struct {
	Mode      string     `json:"mode"`
	StartedAt *time.Time `json:"started_at"`
	Version   string     `json:"version"`
}
