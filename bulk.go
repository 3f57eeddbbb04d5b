package mataresit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mataresit/mataresit-go/internal/apierrors"
)

// BatchProgress is reported after each batch of a BulkUpload.
type BatchProgress struct {
	Batch        int   // 1-based
	TotalBatches int
	Size         int
	Created      int
	Failed       int   // receipts of this batch that were not created
	Err          error // set when the whole batch request failed
}

// BulkResult aggregates the outcome of a BulkUpload. Failed always equals
// len(FailedReceipts): a rejected receipt and a failed batch request each
// count once. FailedInChunks is the number of receipts sent in failed batch
// requests.
type BulkResult struct {
	Total              int              `json:"total"`
	Successful         int              `json:"successful"`
	Failed             int              `json:"failed"`
	FailedInChunks     int              `json:"failedInChunks"`
	SuccessfulReceipts []Receipt        `json:"successfulReceipts"`
	FailedReceipts     []BatchItemError `json:"failedReceipts"`
}

// BulkUpload creates receipts in batches, pausing between batches. A batch
// whose request fails is recorded as a single FailedReceipts entry with
// Index -1 and the upload moves on to the next batch. Only cancellation of ctx
// stops the upload early, in which case the partial result is returned along
// with the context error.
func (c *Client) BulkUpload(ctx context.Context, receipts []Receipt, opts ...BulkOption) (*BulkResult, error) {
	cfg := &bulkConfig{
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.batchSize < 1 {
		return nil, apierrors.New(ErrInvalidBatchSize, fmt.Sprintf("invalid batch size %d", cfg.batchSize), nil)
	}

	result := &BulkResult{
		Total:              len(receipts),
		SuccessfulReceipts: []Receipt{},
		FailedReceipts:     []BatchItemError{},
	}
	totalBatches := (len(receipts) + cfg.batchSize - 1) / cfg.batchSize

	for start, batch := 0, 1; start < len(receipts); start, batch = start+cfg.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return result, cancelled(err)
		}

		end := min(start+cfg.batchSize, len(receipts))
		progress := BatchProgress{Batch: batch, TotalBatches: totalBatches, Size: end - start}

		created, err := c.CreateReceiptsBatch(ctx, receipts[start:end])
		switch {
		case err != nil && ctx.Err() != nil:
			return result, cancelled(ctx.Err())
		case err != nil:
			result.FailedReceipts = append(result.FailedReceipts, BatchItemError{Index: -1, Batch: batch, Error: err.Error()})
			result.Failed++
			result.FailedInChunks += end - start
			progress.Failed = end - start
			progress.Err = err
			c.metrics.ObserveBatch("failed")
			c.logger.Warn("batch upload failed",
				zap.Int("batch", batch),
				zap.Int("total_batches", totalBatches),
				zap.Error(err),
			)
		default:
			result.SuccessfulReceipts = append(result.SuccessfulReceipts, created.Created...)
			for _, itemErr := range created.Errors {
				itemErr.Batch = batch
				result.FailedReceipts = append(result.FailedReceipts, itemErr)
			}
			result.Successful += len(created.Created)
			result.Failed += len(created.Errors)
			progress.Created = len(created.Created)
			progress.Failed = len(created.Errors)
			if len(created.Errors) > 0 {
				c.metrics.ObserveBatch("partial")
			} else {
				c.metrics.ObserveBatch("ok")
			}
			c.logger.Info("batch uploaded",
				zap.Int("batch", batch),
				zap.Int("total_batches", totalBatches),
				zap.Int("created", progress.Created),
				zap.Int("failed", progress.Failed),
			)
		}

		if cfg.progress != nil {
			cfg.progress(progress)
		}

		if end < len(receipts) && cfg.batchDelay > 0 {
			if err := c.sleep(ctx, cfg.batchDelay); err != nil {
				return result, cancelled(err)
			}
		}
	}

	return result, nil
}

func cancelled(err error) error {
	return &apierrors.Error{Message: "bulk upload cancelled", Err: err}
}
