package model

import (
	"encoding/json"
	"time"
)

// DiscussionStatus is the lifecycle state of a discussion room.
// Transitions are strictly forward.
type DiscussionStatus string

const (
	DiscussionCreated    DiscussionStatus = "CREATED"
	DiscussionInProgress DiscussionStatus = "IN_PROGRESS"
	DiscussionDecided    DiscussionStatus = "DECIDED"
	DiscussionClosed     DiscussionStatus = "CLOSED"
	DiscussionArchived   DiscussionStatus = "ARCHIVED"
)

var statusOrder = map[DiscussionStatus]int{
	DiscussionCreated:    0,
	DiscussionInProgress: 1,
	DiscussionDecided:    2,
	DiscussionClosed:     3,
	DiscussionArchived:   4,
}

// CanTransition reports whether from -> to is a legal single forward step.
func CanTransition(from, to DiscussionStatus) bool {
	fo, ok1 := statusOrder[from]
	to2, ok2 := statusOrder[to]
	return ok1 && ok2 && to2 == fo+1
}

// IsTerminal reports whether no further transitions are possible.
func (s DiscussionStatus) IsTerminal() bool { return s == DiscussionArchived }

// IsOpen reports whether the room still counts as the sector's current
// discussion (suppresses creation of a new one).
func (s DiscussionStatus) IsOpen() bool {
	return s == DiscussionCreated || s == DiscussionInProgress || s == DiscussionDecided
}

// Proposal is the structured trade suggestion attached to oracle-generated
// messages. Messages carrying a proposal bypass content validation.
type Proposal struct {
	Action            Action  `json:"action"`
	Symbol            string  `json:"symbol"`
	AllocationPercent float64 `json:"allocationPercent"`
	Confidence        float64 `json:"confidence"` // [0,1]
}

// Message is one entry in a discussion's append-only message log.
type Message struct {
	ID           string          `json:"id"`
	DiscussionID string          `json:"discussionId"`
	AgentID      string          `json:"agentId"`
	AgentName    string          `json:"agentName"`
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Timestamp    time.Time       `json:"timestamp"`
	Proposal     *Proposal       `json:"proposal,omitempty"`
	Analysis     json.RawMessage `json:"analysis,omitempty"`
}

// RoundSnapshot preserves the message ids and signals of a completed round.
type RoundSnapshot struct {
	Round      int           `json:"round"`
	MessageIDs []string      `json:"messageIds"`
	Signals    []AgentSignal `json:"signals"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    time.Time     `json:"endedAt"`
}

// DiscussionDecision is the committed outcome of a discussion. Immutable
// once set.
type DiscussionDecision struct {
	Action        Action             `json:"action"`
	Confidence    float64            `json:"confidence"` // [0,1]
	Rationale     string             `json:"rationale"`
	VoteBreakdown map[Action]float64 `json:"voteBreakdown"`
	ConflictScore float64            `json:"conflictScore"` // [0,1]
	SelectedAgent string             `json:"selectedAgent"`
}

// DiscussionRoom is a persisted group deliberation.
type DiscussionRoom struct {
	ID            string              `json:"id"` // UUID
	SectorID      string              `json:"sectorId"`
	Title         string              `json:"title"`
	AgentIDs      []string            `json:"agentIds"`
	Messages      []Message           `json:"messages"`
	MessagesCount int                 `json:"messagesCount"`
	Status        DiscussionStatus    `json:"status"`
	CurrentRound  int                 `json:"currentRound"` // >= 1
	RoundHistory  []RoundSnapshot     `json:"roundHistory"`
	FinalDecision *DiscussionDecision `json:"finalDecision,omitempty"`
	DecidedAt     *time.Time          `json:"decidedAt,omitempty"`
	ClosedAt      *time.Time          `json:"discussionClosedAt,omitempty"`
	CloseReason   string              `json:"closeReason,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// AppendMessage records a message and keeps the derived count consistent.
func (d *DiscussionRoom) AppendMessage(m Message) {
	d.Messages = append(d.Messages, m)
	d.MessagesCount = len(d.Messages)
}

// Transition moves the room one state forward, or fails with
// IllegalTransitionError.
func (d *DiscussionRoom) Transition(to DiscussionStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return &IllegalTransitionError{From: d.Status, To: to}
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}
