package services

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/logger"

	"raffle/internal/models"
	"raffle/internal/vrf"
)

// CheckUpkeep evaluates whether a draw is due: the raffle is OPEN, the
// configured interval has elapsed since the last draw, and there is at
// least one entrant and a non-zero pot. Pure; safe to call at any
// frequency.
func (s *RaffleService) CheckUpkeep() (bool, models.UpkeepDiagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerDueLocked()
}

func (s *RaffleService) triggerDueLocked() (bool, models.UpkeepDiagnostic) {
	diag := models.UpkeepDiagnostic{
		Open:             s.state == models.StateOpen,
		IntervalElapsed:  s.now().Sub(s.lastDrawAt) > s.settings.Interval,
		HasEntrants:      len(s.entrants) > 0,
		HasBalance:       s.pooled.Sign() > 0,
		State:            s.state.String(),
		EntrantCount:     len(s.entrants),
		PooledBalanceWei: s.pooled.String(),
		LastDrawAt:       s.lastDrawAt,
		PendingRequestID: s.pendingRequestID,
	}
	due := diag.Open && diag.IntervalElapsed && diag.HasEntrants && diag.HasBalance
	return due, diag
}

// PerformUpkeep re-checks the trigger and, if due, moves the raffle to
// CALCULATING and issues exactly one randomness request with the configured
// routing parameters. The trigger is always re-evaluated here; a caller's
// earlier CheckUpkeep result is never trusted. Returns the provider's
// request id.
func (s *RaffleService) PerformUpkeep() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, _ := s.triggerDueLocked()
	if !due {
		return "", &TriggerNotSatisfiedError{
			Balance:  new(big.Int).Set(s.pooled),
			Entrants: len(s.entrants),
			State:    s.state,
		}
	}

	s.state = models.StateCalculating

	requestID, err := s.provider.RequestRandomWords(vrf.RandomnessRequest{
		KeyHash:              s.settings.KeyHash.Hex(),
		SubscriptionID:       s.settings.SubscriptionID,
		RequestConfirmations: s.settings.RequestConfirmations,
		CallbackGasLimit:     s.settings.CallbackGasLimit,
		NumWords:             s.settings.NumWords,
	})
	if err != nil {
		// No request is outstanding, so the raffle reopens.
		s.state = models.StateOpen
		return "", fmt.Errorf("requesting randomness: %w", err)
	}

	s.pendingRequestID = requestID
	s.emit(models.Event{
		Type:      models.EventDrawRequested,
		RequestID: requestID,
	})
	logger.Infof("Draw requested: request=%s entrants=%d pot=%s wei", requestID, len(s.entrants), s.pooled)

	return requestID, nil
}

// FulfillRandomness is the provider's callback. It closes the cycle for the
// matching pending request: the first random word modulo the entrant count
// (taken now, while entries are still impossible) selects the winner, the
// entire pot is transferred, and the ledger resets. The close is
// all-or-nothing: a failed transfer leaves the raffle CALCULATING with the
// entrant list intact so funds are never dropped by a partial reset.
// Mismatched request ids or a non-CALCULATING state fail closed without
// touching state.
func (s *RaffleService) FulfillRandomness(requestID string, randomWords []*big.Int) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.StateCalculating {
		return common.Address{}, ErrDrawNotPending
	}
	if requestID != s.pendingRequestID {
		return common.Address{}, ErrUnknownRequest
	}
	if len(randomWords) == 0 || randomWords[0] == nil {
		return common.Address{}, ErrNoRandomWords
	}

	count := int64(len(s.entrants))
	index := new(big.Int).Mod(randomWords[0], big.NewInt(count)).Int64()
	winner := s.entrants[index]
	payout := new(big.Int).Set(s.pooled)

	if err := s.rail.Transfer(winner, payout); err != nil {
		logger.Errorf("Payout of %s wei to %s failed, cycle left pending: %v", payout, winner.Hex(), err)
		return common.Address{}, fmt.Errorf("%w: %v", ErrPayoutTransferFailed, err)
	}

	s.recentWinner = winner
	s.entrants = nil
	s.pooled = big.NewInt(0)
	s.pendingRequestID = ""
	s.lastDrawAt = s.now()
	s.state = models.StateOpen

	s.emit(models.Event{
		Type:      models.EventWinnerPicked,
		RequestID: requestID,
		Winner:    winner.Hex(),
	})
	logger.Infof("Winner picked: %s won %s wei (request=%s, slot %d of %d)", winner.Hex(), payout, requestID, index, count)

	return winner, nil
}
