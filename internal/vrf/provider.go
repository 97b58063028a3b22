// Package vrf defines the contract with the external randomness provider:
// a request carrying fixed routing parameters, answered later by an
// out-of-band fulfillment callback.
package vrf

import "math/big"

// RandomnessRequest carries the routing parameters for one draw request.
type RandomnessRequest struct {
	KeyHash              string `json:"keyHash"`
	SubscriptionID       uint64 `json:"subscriptionId"`
	RequestConfirmations uint16 `json:"requestConfirmations"`
	CallbackGasLimit     uint32 `json:"callbackGasLimit"`
	NumWords             uint32 `json:"numWords"`
}

// Provider issues randomness requests. The returned request id identifies
// the fulfillment the provider delivers later; exactly one fulfillment is
// expected per request.
type Provider interface {
	RequestRandomWords(req RandomnessRequest) (string, error)
}

// FulfillFunc delivers a provider fulfillment back into the coordinator.
type FulfillFunc func(requestID string, randomWords []*big.Int) error
