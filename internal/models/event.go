package models

import "time"

// Event types pushed on the live-update stream.
const (
	EventConnected               = "connected"
	EventHeartbeat               = "heartbeat"
	EventRegistrationCreated     = "registration_created"
	EventRegistrationDeleted     = "registration_deleted"
	EventProblemStatementCreated = "problem_statement_created"
	EventProblemStatementUpdated = "problem_statement_updated"
	EventProblemStatementDeleted = "problem_statement_deleted"
)

// Event is a single frame on the live-update stream.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Snapshot is the full refreshed state carried by mutation events.
type Snapshot struct {
	ProblemStatements []ProblemStatementView `json:"problemStatements"`
	Registrations     []RegistrationDetail   `json:"registrations"`
	GeneratedAt       time.Time              `json:"generatedAt"`
}
