package services

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/logger"

	"raffle/internal/models"
	"raffle/internal/payouts"
	"raffle/internal/vrf"
)

var (
	ErrInsufficientStake    = errors.New("deposit is below the entrance fee")
	ErrNotOpen              = errors.New("raffle is not open for entries")
	ErrIndexOutOfRange      = errors.New("entrant index out of range")
	ErrUnknownRequest       = errors.New("request id does not match the pending draw")
	ErrDrawNotPending       = errors.New("no draw is pending fulfillment")
	ErrNoRandomWords        = errors.New("fulfillment carried no random words")
	ErrPayoutTransferFailed = errors.New("payout transfer failed")
)

// TriggerNotSatisfiedError reports a draw request made while the trigger
// conditions do not hold, carrying the state snapshot it was evaluated
// against.
type TriggerNotSatisfiedError struct {
	Balance  *big.Int
	Entrants int
	State    models.State
}

func (e *TriggerNotSatisfiedError) Error() string {
	return fmt.Sprintf("draw trigger not satisfied: balance=%s entrants=%d state=%s",
		e.Balance, e.Entrants, e.State)
}

// EventSink receives the notification log events.
type EventSink interface {
	Append(ev models.Event) error
}

// RaffleService owns one raffle instance: the entrant ledger, the pooled
// balance, and the draw lifecycle. A single mutex guards the
// {state, entrants, balance, pending request} tuple; every mutating
// operation holds it end to end, so each operation commits or rolls back
// as a whole.
type RaffleService struct {
	mu       sync.Mutex
	settings models.DrawSettings
	provider vrf.Provider
	rail     payouts.Rail
	events   EventSink
	now      func() time.Time

	state            models.State
	entrants         []common.Address
	pooled           *big.Int
	recentWinner     common.Address
	lastDrawAt       time.Time
	pendingRequestID string
}

// NewRaffleService creates a raffle in the OPEN state with an empty ledger.
// The interval clock starts at creation time.
func NewRaffleService(settings models.DrawSettings, provider vrf.Provider, rail payouts.Rail, events EventSink) *RaffleService {
	s := &RaffleService{
		settings: settings,
		provider: provider,
		rail:     rail,
		events:   events,
		now:      time.Now,
		state:    models.StateOpen,
		pooled:   big.NewInt(0),
	}
	s.lastDrawAt = s.now()
	return s
}

// Enter deposits amountWei for participant. The deposit must meet the
// entrance fee and the raffle must be OPEN. Each deposit is a separate
// draw slot; repeat entries are allowed without bound. Returns the index
// of the new slot.
func (s *RaffleService) Enter(participant common.Address, amountWei *big.Int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amountWei == nil || amountWei.Cmp(s.settings.EntranceFee) < 0 {
		return 0, ErrInsufficientStake
	}
	if s.state != models.StateOpen {
		return 0, ErrNotOpen
	}

	s.entrants = append(s.entrants, participant)
	s.pooled.Add(s.pooled, amountWei)

	s.emit(models.Event{
		Type:        models.EventEntered,
		Participant: participant.Hex(),
	})

	return len(s.entrants) - 1, nil
}

// EntrantAt returns the entrant occupying draw slot index.
func (s *RaffleService) EntrantAt(index int) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entrants) {
		return common.Address{}, ErrIndexOutOfRange
	}
	return s.entrants[index], nil
}

// EntrantCount returns the number of draw slots in the current cycle.
func (s *RaffleService) EntrantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entrants)
}

// PooledBalance returns a copy of the pot accumulated this cycle.
func (s *RaffleService) PooledBalance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.pooled)
}

// RecentWinner returns the winner of the last completed cycle, or the zero
// address if no cycle has completed yet.
func (s *RaffleService) RecentWinner() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentWinner
}

// State returns the current lifecycle state.
func (s *RaffleService) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastDrawAt returns when the last cycle completed (or the instance was
// created).
func (s *RaffleService) LastDrawAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDrawAt
}

// PendingRequestID returns the in-flight randomness request id, or "" when
// no draw is pending.
func (s *RaffleService) PendingRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRequestID
}

// Settings returns the immutable draw settings.
func (s *RaffleService) Settings() models.DrawSettings {
	return s.settings
}

// Snapshot returns the full read-only view of the raffle.
func (s *RaffleService) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.Snapshot{
		State:                s.state.String(),
		EntrantCount:         len(s.entrants),
		PooledBalanceWei:     s.pooled.String(),
		EntranceFeeWei:       s.settings.EntranceFee.String(),
		IntervalSeconds:      int64(s.settings.Interval / time.Second),
		LastDrawAt:           s.lastDrawAt,
		PendingRequestID:     s.pendingRequestID,
		RequestConfirmations: s.settings.RequestConfirmations,
		NumWords:             s.settings.NumWords,
	}
	if s.recentWinner != (common.Address{}) {
		snap.RecentWinner = s.recentWinner.Hex()
	}
	return snap
}

// emit appends to the notification log. Log delivery failures are reported
// but do not fail the operation that produced the event.
func (s *RaffleService) emit(ev models.Event) {
	if s.events == nil {
		return
	}
	ev.CreatedAt = s.now()
	if err := s.events.Append(ev); err != nil {
		logger.Errorf("Failed to append %s event: %v", ev.Type, err)
	}
}
