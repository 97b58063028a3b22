package vrf

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPProvider talks to a remote randomness coordinator over its REST API.
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider creates a provider client for the coordinator at baseURL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPProvider{client: client}
}

type requestWordsReply struct {
	RequestID string `json:"requestId"`
}

// RequestRandomWords posts the routing parameters to the coordinator and
// returns the request id it assigned.
func (p *HTTPProvider) RequestRandomWords(req RandomnessRequest) (string, error) {
	var reply requestWordsReply

	resp, err := p.client.R().
		SetBody(req).
		SetResult(&reply).
		Post("/v2/randomness/requests")
	if err != nil {
		return "", fmt.Errorf("requesting random words: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("randomness provider returned %s", resp.Status())
	}
	if reply.RequestID == "" {
		return "", errors.New("randomness provider returned no request id")
	}

	return reply.RequestID, nil
}
