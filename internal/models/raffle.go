package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is the lifecycle phase of the raffle cycle.
// OPEN accepts entries and is eligible for a draw once the trigger
// conditions hold; CALCULATING means a randomness request is in flight
// and entries are rejected until it is fulfilled.
type State int

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return "UNKNOWN"
	}
}

// DrawSettings holds the immutable per-instance raffle parameters,
// including the routing parameters forwarded to the randomness provider.
type DrawSettings struct {
	EntranceFee          *big.Int
	Interval             time.Duration
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

// Notification log event types.
const (
	EventEntered       = "entered"
	EventDrawRequested = "draw_requested"
	EventWinnerPicked  = "winner_picked"
)

// Event is one entry of the append-only notification log.

type Event struct {
	ID          int64     `json:"id" csv:"id"`
	Type        string    `json:"type" csv:"type"`
	Participant string    `json:"participant,omitempty" csv:"participant"`
	RequestID   string    `json:"requestId,omitempty" csv:"request_id"`
	Winner      string    `json:"winner,omitempty" csv:"winner"`
	CreatedAt   time.Time `json:"createdAt" csv:"created_at"`
}

// Snapshot is the full read-only view of a raffle instance.
type Snapshot struct {
	State                string    `json:"state"`
	EntrantCount         int       `json:"entrantCount"`
	PooledBalanceWei     string    `json:"pooledBalanceWei"`
	EntranceFeeWei       string    `json:"entranceFeeWei"`
	IntervalSeconds      int64     `json:"intervalSeconds"`
	RecentWinner         string    `json:"recentWinner,omitempty"`
	LastDrawAt           time.Time `json:"lastDrawAt"`
	PendingRequestID     string    `json:"pendingRequestId,omitempty"`
	RequestConfirmations uint16    `json:"requestConfirmations"`
	NumWords             uint32    `json:"numWords"`
}

// UpkeepDiagnostic reports each trigger condition separately along with the
// state values it was computed from, so external trigger sources can see
// which condition is holding a draw back.
type UpkeepDiagnostic struct {
	Open             bool      `json:"open"`
	IntervalElapsed  bool      `json:"intervalElapsed"`
	HasEntrants      bool      `json:"hasEntrants"`
	HasBalance       bool      `json:"hasBalance"`
	State            string    `json:"state"`
	EntrantCount     int       `json:"entrantCount"`
	PooledBalanceWei string    `json:"pooledBalanceWei"`
	LastDrawAt       time.Time `json:"lastDrawAt"`
	PendingRequestID string    `json:"pendingRequestId,omitempty"`
}
