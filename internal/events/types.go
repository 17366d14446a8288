// Package events implements the in-process publish/subscribe bus:
// topic-per-site progress events bridged to clients over server-sent
// event streams.
//
// The worker pool and the SSE-serving API share one process here, so
// the bus is pure in-process channels with no cross-pod bridge — a
// registry map with a snapshot-then-send broadcast is all a
// single-process deployment needs.
package events

import "time"

// Kind namespaces a topic by which subsystem owns it.
type Kind string

const (
	KindBuild    Kind = "build"
	KindAgent    Kind = "agent"
	KindLiveEdit Kind = "live-edit"
)

// Topic returns the bus key "{kind}:{siteId}[:{stream}]".
func Topic(kind Kind, siteID string, stream ...string) string {
	t := string(kind) + ":" + siteID
	for _, s := range stream {
		t += ":" + s
	}
	return t
}

// Type enumerates the typed event payloads a progress stream carries.
type Type string

const (
	TypeLog                Type = "log"
	TypePhase              Type = "phase"
	TypeStepStart          Type = "step_start"
	TypeStepComplete       Type = "step_complete"
	TypePatch              Type = "patch"
	TypePlan               Type = "plan"
	TypeDeploy             Type = "deploy"
	TypeVerificationStart  Type = "verification_start"
	TypeVerificationResult Type = "verification_result"
	TypeDone               Type = "done"
	TypeError              Type = "error"
	TypeHeartbeat          Type = "heartbeat"
)

// Event is one message published on a topic.
type Event struct {
	Topic     string    `json:"-"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LogPayload backs the "log" event.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// PhasePayload backs the "phase" event.
type PhasePayload struct {
	Phase     string `json:"phase"`
	Iteration *int   `json:"iteration,omitempty"`
}

// StepPayload backs "step_start" and "step_complete".
type StepPayload struct {
	Step        string `json:"step"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`
}

// PatchPayload backs "patch" (one per edited file).
type PatchPayload struct {
	Path string `json:"path"`
}

// PlanPayload backs "plan".
type PlanPayload struct {
	PlanID    string   `json:"planId"`
	Edits     []string `json:"edits"`
	Rationale string   `json:"rationale"`
}

// ErrorPayload backs "error".
type ErrorPayload struct {
	Message string `json:"message"`
}
