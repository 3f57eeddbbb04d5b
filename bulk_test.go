package mataresit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mataresit/mataresit-go/internal/fakeserver"
)

func makeReceipts(n int) []Receipt {
	receipts := make([]Receipt, n)
	for i := range receipts {
		receipts[i] = Receipt{
			Merchant: fmt.Sprintf("Merchant %d", i+1),
			Date:     "2025-01-15",
			Total:    NewAmount(float64(i + 1)),
			Category: "Office Supplies",
		}
	}
	return receipts
}

func TestBulkUpload_ChunksAndDelays(t *testing.T) {
	c, fake, clock := newTestClient(t, nil)

	var progress []BatchProgress
	result, err := c.BulkUpload(context.Background(), makeReceipts(11),
		WithBatchSize(5),
		WithProgress(func(p BatchProgress) { progress = append(progress, p) }),
	)
	if err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}

	if n := fake.CountRequests("POST", "/receipts/batch"); n != 3 {
		t.Errorf("batch requests = %d, want 3", n)
	}
	want := []time.Duration{time.Second, time.Second}
	if !equalDurations(clock.sleeps, want) {
		t.Errorf("sleeps = %v, want %v", clock.sleeps, want)
	}
	if result.Total != 11 || result.Successful != 11 || result.Failed != 0 {
		t.Errorf("result = %d/%d/%d", result.Total, result.Successful, result.Failed)
	}
	if len(result.SuccessfulReceipts) != 11 || len(result.FailedReceipts) != 0 {
		t.Errorf("itemized = %d ok, %d failed", len(result.SuccessfulReceipts), len(result.FailedReceipts))
	}

	sizes := []int{5, 5, 1}
	if len(progress) != 3 {
		t.Fatalf("progress calls = %d, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Batch != i+1 || p.TotalBatches != 3 || p.Size != sizes[i] || p.Created != sizes[i] {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
}

func TestBulkUpload_DefaultBatchSize(t *testing.T) {
	c, fake, clock := newTestClient(t, nil)

	if _, err := c.BulkUpload(context.Background(), makeReceipts(10)); err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}
	if n := fake.CountRequests("POST", "/receipts/batch"); n != 1 {
		t.Errorf("batch requests = %d, want 1", n)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none after the last batch", clock.sleeps)
	}
}

func TestBulkUpload_ChunkFailureDoesNotAbort(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, fake, _ := newTestClient(t, []fakeserver.Option{fakeserver.WithFailingBatches(2)}, WithMetrics(reg))

	var progress []BatchProgress
	result, err := c.BulkUpload(context.Background(), makeReceipts(11),
		WithBatchSize(5),
		WithBatchDelay(0),
		WithProgress(func(p BatchProgress) { progress = append(progress, p) }),
	)
	if err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}
	if n := fake.CountRequests("POST", "/receipts/batch"); n != 3 {
		t.Errorf("batch requests = %d, want 3", n)
	}
	if result.Successful != 6 || result.Failed != 1 || result.FailedInChunks != 5 {
		t.Errorf("Successful, Failed, FailedInChunks = %d, %d, %d, want 6, 1, 5",
			result.Successful, result.Failed, result.FailedInChunks)
	}
	if result.Failed != len(result.FailedReceipts) {
		t.Errorf("Failed = %d, want len(FailedReceipts) = %d", result.Failed, len(result.FailedReceipts))
	}
	if len(result.FailedReceipts) != 1 {
		t.Fatalf("FailedReceipts = %+v, want one chunk entry", result.FailedReceipts)
	}
	failure := result.FailedReceipts[0]
	if failure.Batch != 2 || failure.Index != -1 || failure.Error == "" {
		t.Errorf("failure = %+v", failure)
	}
	if progress[1].Failed != 5 {
		t.Errorf("progress[1].Failed = %d, want the 5 receipts of the batch", progress[1].Failed)
	}
	if progress[1].Err == nil || StatusCode(progress[1].Err) != 500 {
		t.Errorf("progress[1].Err = %v, want the 500", progress[1].Err)
	}

	if got := counterValue(t, reg, "mataresit_client_bulk_batches_total", map[string]string{"outcome": "failed"}); got != 1 {
		t.Errorf("failed batches metric = %v, want 1", got)
	}
	if got := counterValue(t, reg, "mataresit_client_bulk_batches_total", map[string]string{"outcome": "ok"}); got != 2 {
		t.Errorf("ok batches metric = %v, want 2", got)
	}
}

func TestBulkUpload_ItemErrorsCarryBatch(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	receipts := makeReceipts(4)
	receipts[3].Merchant = ""

	result, err := c.BulkUpload(context.Background(), receipts, WithBatchSize(2), WithBatchDelay(0))
	if err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}
	if result.Successful != 3 || result.Failed != 1 {
		t.Errorf("Successful, Failed = %d, %d", result.Successful, result.Failed)
	}
	if len(result.FailedReceipts) != 1 {
		t.Fatalf("FailedReceipts = %+v", result.FailedReceipts)
	}
	if f := result.FailedReceipts[0]; f.Batch != 2 || f.Index != 1 {
		t.Errorf("failure = %+v, want batch 2 index 1", f)
	}
}

func TestBulkUpload_InvalidBatchSize(t *testing.T) {
	c, fake, _ := newTestClient(t, nil)

	_, err := c.BulkUpload(context.Background(), makeReceipts(3), WithBatchSize(0))
	if !errors.Is(err, ErrInvalidBatchSize) {
		t.Errorf("BulkUpload() error = %v, want ErrInvalidBatchSize", err)
	}
	if len(fake.Requests()) != 0 {
		t.Error("no requests expected")
	}
}

func TestBulkUpload_Empty(t *testing.T) {
	c, fake, _ := newTestClient(t, nil)

	result, err := c.BulkUpload(context.Background(), nil)
	if err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}
	if result.Total != 0 || len(fake.Requests()) != 0 {
		t.Errorf("result = %+v, requests = %v", result, fake.Requests())
	}
}

func TestBulkUpload_CancelReturnsPartialResult(t *testing.T) {
	c, fake, _ := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result, err := c.BulkUpload(ctx, makeReceipts(6),
		WithBatchSize(2),
		WithProgress(func(p BatchProgress) {
			if p.Batch == 1 {
				cancel()
			}
		}),
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("BulkUpload() error = %v, want context.Canceled", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Errorf("BulkUpload() error = %T, want *Error", err)
	}
	if result == nil || result.Successful != 2 {
		t.Errorf("partial result = %+v, want 2 successful", result)
	}
	if n := fake.CountRequests("POST", "/receipts/batch"); n != 1 {
		t.Errorf("batch requests = %d, want 1", n)
	}
}

func TestBulkUpload_RetriesRateLimitedChunk(t *testing.T) {
	c, fake, clock := newTestClient(t, nil)
	fake.ThrottleNext(1)

	result, err := c.BulkUpload(context.Background(), makeReceipts(3), WithBatchSize(3))
	if err != nil {
		t.Fatalf("BulkUpload() error = %v", err)
	}
	if result.Successful != 3 {
		t.Errorf("Successful = %d, want 3", result.Successful)
	}
	want := []time.Duration{2 * time.Second}
	if !equalDurations(clock.sleeps, want) {
		t.Errorf("sleeps = %v, want %v (one backoff, no trailing batch delay)", clock.sleeps, want)
	}
}
