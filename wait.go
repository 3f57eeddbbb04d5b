package mataresit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mataresit/mataresit-go/internal/apierrors"
)

// WaitForProcessing polls the receipt until the server reports it complete or
// failed. A failed receipt yields an error matching ErrProcessingFailed; a
// receipt still pending after the max wait yields ErrProcessingTimeout. Any
// other status, including a missing one, is treated as pending.
func (c *Client) WaitForProcessing(ctx context.Context, id string, opts ...WaitOption) (*Receipt, error) {
	cfg := &waitConfig{
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	start := c.now()
	polls := 0
	for c.now().Sub(start) < cfg.maxWait {
		receipt, err := c.GetReceipt(ctx, id)
		if err != nil {
			return nil, err
		}
		polls++

		switch receipt.Status() {
		case StatusComplete:
			return receipt, nil
		case StatusFailed:
			return nil, apierrors.New(ErrProcessingFailed, fmt.Sprintf("receipt %s processing failed", id), nil)
		}

		c.logger.Debug("receipt still processing",
			zap.String("receipt_id", id),
			zap.String("status", string(receipt.Status())),
			zap.Int("polls", polls),
		)
		if err := c.sleep(ctx, cfg.pollInterval); err != nil {
			return nil, &apierrors.Error{Message: "wait for processing", Err: err}
		}
	}

	return nil, apierrors.New(ErrProcessingTimeout,
		fmt.Sprintf("receipt %s still processing after %s", id, cfg.maxWait), nil)
}

// CreateReceiptAndWait creates a receipt and waits for its processing to
// finish. Use CreateReceipt to return as soon as the receipt is stored.
func (c *Client) CreateReceiptAndWait(ctx context.Context, receipt *Receipt, opts ...WaitOption) (*Receipt, error) {
	created, err := c.CreateReceipt(ctx, receipt)
	if err != nil {
		return nil, err
	}
	if created.Status() == StatusComplete {
		return created, nil
	}
	return c.WaitForProcessing(ctx, created.ID, opts...)
}
