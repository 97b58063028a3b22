package vrf

import (
	"errors"
	"math/big"
	"math/rand"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
)

// LocalProvider stands in for the randomness oracle in development
// deployments. It assigns uuid request ids and delivers pseudo-random words
// to the bound fulfillment handler after a fixed delay, mimicking the
// asynchronous callback of a real provider. Not a secure source of
// randomness.
type LocalProvider struct {
	delay   time.Duration
	fulfill FulfillFunc
}

// NewLocalProvider creates a dev provider that fulfills after delay.
func NewLocalProvider(delay time.Duration) *LocalProvider {
	return &LocalProvider{delay: delay}
}

// Bind registers the handler that receives fulfillments. Must be called
// before the first request.
func (p *LocalProvider) Bind(fulfill FulfillFunc) {
	p.fulfill = fulfill
}

// RequestRandomWords assigns a request id and schedules its fulfillment.
func (p *LocalProvider) RequestRandomWords(req RandomnessRequest) (string, error) {
	if p.fulfill == nil {
		return "", errors.New("local provider has no fulfillment handler bound")
	}

	requestID := uuid.New().String()

	numWords := req.NumWords
	if numWords == 0 {
		numWords = 1
	}
	words := make([]*big.Int, numWords)
	for i := range words {
		words[i] = new(big.Int).SetUint64(rand.Uint64())
	}

	time.AfterFunc(p.delay, func() {
		if err := p.fulfill(requestID, words); err != nil {
			logger.Errorf("Local provider fulfillment for request %s failed: %v", requestID, err)
		}
	})

	return requestID, nil
}
