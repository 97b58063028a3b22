// Package payouts is the payment-rail side of the raffle: moving the pooled
// pot to the winner. The rail is a collaborator; a transfer error is
// reported back so the caller can abort the cycle close.
package payouts

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/google/logger"
)

// Rail performs a direct value transfer to the winner's identity.
type Rail interface {
	Transfer(to common.Address, amountWei *big.Int) error
}

// HTTPRail posts transfers to an external settlement service.
type HTTPRail struct {
	client *resty.Client
}

// NewHTTPRail creates a rail client for the settlement service at baseURL.
func NewHTTPRail(baseURL string, timeout time.Duration) *HTTPRail {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPRail{client: client}
}

type transferPayload struct {
	To        string `json:"to"`
	AmountWei string `json:"amountWei"`
}

func (r *HTTPRail) Transfer(to common.Address, amountWei *big.Int) error {
	resp, err := r.client.R().
		SetBody(transferPayload{To: to.Hex(), AmountWei: amountWei.String()}).
		Post("/v1/transfers")
	if err != nil {
		return fmt.Errorf("submitting transfer: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("payment rail returned %s", resp.Status())
	}
	return nil
}

// LogRail is a dev rail with no settlement backend: it records the payout
// in the log and reports success.
type LogRail struct{}

func (LogRail) Transfer(to common.Address, amountWei *big.Int) error {
	logger.Infof("Paid out %s wei to %s (log rail, no settlement)", amountWei, to.Hex())
	return nil
}
