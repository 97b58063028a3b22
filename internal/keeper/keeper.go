// Package keeper runs the in-process upkeep trigger source: a periodic job
// that checks whether a draw is due and requests one when it is.
package keeper

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/logger"

	"raffle/internal/models"
	"raffle/internal/services"
)

// Keeper polls the raffle on a fixed cadence.
type Keeper struct {
	cron    *gocron.Scheduler
	service *services.RaffleService
	every   time.Duration
}

// New creates a keeper polling the service every interval.
func New(service *services.RaffleService, every time.Duration) *Keeper {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)

	return &Keeper{
		cron:    s,
		service: service,
		every:   every,
	}
}

// Start registers the poll job and runs the scheduler asynchronously.
func (k *Keeper) Start() error {
	if _, err := k.cron.Every(k.every).Do(k.tick); err != nil {
		return err
	}
	k.cron.StartAsync()
	logger.Infof("Upkeep keeper polling every %s", k.every)
	return nil
}

// Stop stops the scheduler.
func (k *Keeper) Stop() {
	k.cron.Stop()
}

func (k *Keeper) tick() {
	due, diag := k.service.CheckUpkeep()
	if !due {
		if diag.State == models.StateCalculating.String() {
			logger.Infof("Upkeep skipped: draw %s still awaiting fulfillment", diag.PendingRequestID)
		}
		return
	}

	requestID, err := k.service.PerformUpkeep()
	if err != nil {
		// Lost the race against another trigger source, or the provider
		// rejected the request.
		var trigger *services.TriggerNotSatisfiedError
		if errors.As(err, &trigger) {
			logger.Infof("Upkeep no longer due at request time: %v", trigger)
			return
		}
		logger.Errorf("Upkeep failed: %v", err)
		return
	}
	logger.Infof("Keeper requested draw %s", requestID)
}
