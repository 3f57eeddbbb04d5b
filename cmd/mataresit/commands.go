package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	mataresit "github.com/mataresit/mataresit-go"
)

func rateLimit(perSecond float64) rate.Limit {
	return rate.Limit(perSecond)
}

// amountFlag is a flag.Value holding an optional Amount.
type amountFlag struct {
	value *mataresit.Amount
}

func (f *amountFlag) String() string {
	if f.value == nil {
		return ""
	}
	return f.value.String()
}

func (f *amountFlag) Set(s string) error {
	a, err := mataresit.ParseAmount(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	f.value = &a
	return nil
}

// optionalString records whether a string flag was given, so updates only
// send the fields the user set.
type optionalString struct {
	value *string
}

func (f *optionalString) String() string {
	if f.value == nil {
		return ""
	}
	return *f.value
}

func (f *optionalString) Set(s string) error {
	f.value = &s
	return nil
}

func runHealth(ctx context.Context, a *app, _ []string) error {
	h, err := a.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return a.print(h)
}

func runListReceipts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list-receipts", flag.ContinueOnError)
	var p mataresit.ListReceiptsParams
	var minAmount, maxAmount amountFlag
	fs.StringVar(&p.StartDate, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&p.EndDate, "end", "", "end date (YYYY-MM-DD)")
	fs.StringVar(&p.Merchant, "merchant", "", "merchant name contains")
	fs.StringVar(&p.Category, "category", "", "category")
	fs.StringVar(&p.PaymentMethod, "payment-method", "", "payment method")
	fs.StringVar(&p.Currency, "currency", "", "currency code")
	fs.StringVar(&p.TeamID, "team", "", "team ID")
	fs.Var(&minAmount, "min", "minimum total")
	fs.Var(&maxAmount, "max", "maximum total")
	fs.IntVar(&p.Limit, "limit", 0, "page size")
	fs.IntVar(&p.Offset, "offset", 0, "page offset")
	fs.StringVar(&p.SortBy, "sort", "", "sort by: date, total, merchant, created_at")
	fs.StringVar(&p.SortOrder, "order", "", "sort order: asc, desc")
	if _, err := parseFlags(fs, args, a.cfg); err != nil {
		return err
	}
	p.MinAmount = minAmount.value
	p.MaxAmount = maxAmount.value

	list, err := a.client.ListReceipts(ctx, &p)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}
	return a.print(list)
}

func runGetReceipt(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("get-receipt", flag.ContinueOnError)
	positional, err := parseFlags(fs, args, a.cfg)
	if err != nil {
		return err
	}
	id, err := requireArg(positional, "receipt ID")
	if err != nil {
		return err
	}
	r, err := a.client.GetReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("get receipt: %w", err)
	}
	return a.print(r)
}

func runCreateReceipt(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-receipt", flag.ContinueOnError)
	var r mataresit.Receipt
	var total amountFlag
	wait := fs.Bool("wait", false, "wait for processing to finish")
	fs.StringVar(&r.Merchant, "merchant", "", "merchant name (required)")
	fs.StringVar(&r.Date, "date", "", "receipt date YYYY-MM-DD (required)")
	fs.Var(&total, "total", "total amount (required)")
	fs.StringVar(&r.Currency, "currency", "", "currency code (default USD)")
	fs.StringVar(&r.PaymentMethod, "payment-method", "", "payment method")
	fs.StringVar(&r.Category, "category", "", "category")
	fs.StringVar(&r.FullText, "text", "", "full receipt text")
	fs.StringVar(&r.TeamID, "team", "", "team ID")
	if _, err := parseFlags(fs, args, a.cfg); err != nil {
		return err
	}
	if total.value == nil {
		return errors.New("missing -total")
	}
	r.Total = *total.value

	var (
		created *mataresit.Receipt
		err     error
	)
	if *wait {
		created, err = a.client.CreateReceiptAndWait(ctx, &r, a.waitOptions()...)
	} else {
		created, err = a.client.CreateReceipt(ctx, &r)
	}
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	return a.print(created)
}

func runUpdateReceipt(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("update-receipt", flag.ContinueOnError)
	var merchant, date, currency, payment, category, text optionalString
	var total amountFlag
	fs.Var(&merchant, "merchant", "merchant name")
	fs.Var(&date, "date", "receipt date YYYY-MM-DD")
	fs.Var(&total, "total", "total amount")
	fs.Var(&currency, "currency", "currency code")
	fs.Var(&payment, "payment-method", "payment method")
	fs.Var(&category, "category", "category")
	fs.Var(&text, "text", "full receipt text")
	positional, err := parseFlags(fs, args, a.cfg)
	if err != nil {
		return err
	}
	id, err := requireArg(positional, "receipt ID")
	if err != nil {
		return err
	}

	update := &mataresit.ReceiptUpdate{
		Merchant:      merchant.value,
		Date:          date.value,
		Total:         total.value,
		Currency:      currency.value,
		PaymentMethod: payment.value,
		Category:      category.value,
		FullText:      text.value,
	}
	r, err := a.client.UpdateReceipt(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	return a.print(r)
}

func runDeleteReceipt(ctx context.Context, a *app, args []string) error {
	id, err := requireArg(args, "receipt ID")
	if err != nil {
		return err
	}
	if err := a.client.DeleteReceipt(ctx, id); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return a.print(map[string]any{"success": true, "deleted": id})
}

func (a *app) waitOptions() []mataresit.WaitOption {
	return []mataresit.WaitOption{
		mataresit.WithPollInterval(a.settings.PollInterval),
		mataresit.WithMaxWait(a.settings.MaxWait),
	}
}

func runWait(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	interval := fs.Duration("interval", a.settings.PollInterval, "poll interval")
	maxWait := fs.Duration("max-wait", a.settings.MaxWait, "maximum time to wait")
	positional, err := parseFlags(fs, args, a.cfg)
	if err != nil {
		return err
	}
	id, err := requireArg(positional, "receipt ID")
	if err != nil {
		return err
	}

	r, err := a.client.WaitForProcessing(ctx, id,
		mataresit.WithPollInterval(*interval),
		mataresit.WithMaxWait(*maxWait),
	)
	if err != nil {
		return fmt.Errorf("wait for processing: %w", err)
	}
	return a.print(r)
}

func runBulkUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("bulk-upload", flag.ContinueOnError)
	batchSize := fs.Int("batch-size", a.settings.BatchSize, "receipts per batch")
	delay := fs.Duration("delay", a.settings.BatchDelay, "pause between batches")
	positional, err := parseFlags(fs, args, a.cfg)
	if err != nil {
		return err
	}
	path, err := requireArg(positional, "receipts file (use - for stdin)")
	if err != nil {
		return err
	}

	receipts, err := loadReceipts(path, a.cfg.Stdin)
	if err != nil {
		return err
	}

	result, err := a.client.BulkUpload(ctx, receipts,
		mataresit.WithBatchSize(*batchSize),
		mataresit.WithBatchDelay(*delay),
		mataresit.WithProgress(func(p mataresit.BatchProgress) {
			if p.Err != nil {
				fmt.Fprintf(a.cfg.Stderr, "Batch %d/%d failed: %v\n", p.Batch, p.TotalBatches, p.Err)
				return
			}
			fmt.Fprintf(a.cfg.Stderr, "Batch %d/%d complete: %d successful, %d failed\n",
				p.Batch, p.TotalBatches, p.Created, p.Failed)
		}),
	)
	if result != nil {
		a.log.Info("bulk upload finished",
			zap.Int("total", result.Total),
			zap.Int("successful", result.Successful),
			zap.Int("failed", result.Failed),
			zap.Int("failed_in_chunks", result.FailedInChunks),
		)
	}
	if err != nil {
		if result != nil {
			_ = a.print(result)
		}
		return fmt.Errorf("bulk upload: %w", err)
	}
	return a.print(result)
}

// loadReceipts reads a JSON or YAML list of receipts from path, or from stdin
// when path is "-". YAML is detected by file extension.
func loadReceipts(path string, stdin io.Reader) ([]mataresit.Receipt, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read receipts: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse receipts: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("parse receipts: %w", err)
		}
	}

	var receipts []mataresit.Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("parse receipts: %w", err)
	}
	return receipts, nil
}

func runListClaims(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list-claims", flag.ContinueOnError)
	var p mataresit.ListClaimsParams
	var priority string
	fs.StringVar(&p.TeamID, "team", "", "team ID")
	fs.StringVar(&p.Status, "status", "", "claim status")
	fs.StringVar(&priority, "priority", "", "low, medium, high or urgent")
	fs.IntVar(&p.Limit, "limit", 0, "page size")
	fs.IntVar(&p.Offset, "offset", 0, "page offset")
	if _, err := parseFlags(fs, args, a.cfg); err != nil {
		return err
	}
	p.Priority = mataresit.ClaimPriority(priority)

	list, err := a.client.ListClaims(ctx, &p)
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}
	return a.print(list)
}

func runCreateClaim(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-claim", flag.ContinueOnError)
	var c mataresit.Claim
	var amount amountFlag
	var priority string
	fs.StringVar(&c.TeamID, "team", "", "team ID (required)")
	fs.StringVar(&c.Title, "title", "", "claim title (required)")
	fs.Var(&amount, "amount", "claim amount (required)")
	fs.StringVar(&c.Currency, "currency", "", "currency code (default USD)")
	fs.StringVar(&c.Description, "description", "", "description")
	fs.StringVar(&c.Category, "category", "", "category")
	fs.StringVar(&priority, "priority", "", "low, medium, high or urgent (default medium)")
	if _, err := parseFlags(fs, args, a.cfg); err != nil {
		return err
	}
	if amount.value == nil {
		return errors.New("missing -amount")
	}
	c.Amount = *amount.value
	c.Priority = mataresit.ClaimPriority(priority)

	created, err := a.client.CreateClaim(ctx, &c)
	if err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	return a.print(created)
}

func runSearch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	sources := fs.String("sources", "", "comma-separated sources, e.g. receipts,claims")
	limit := fs.Int("limit", 0, "maximum results")
	threshold := fs.Float64("threshold", 0, "minimum similarity (0-1)")
	positional, err := parseFlags(fs, args, a.cfg)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return errors.New("missing search query")
	}

	req := &mataresit.SearchRequest{
		Query:               strings.Join(positional, " "),
		Limit:               *limit,
		SimilarityThreshold: *threshold,
	}
	if *sources != "" {
		req.Sources = strings.Split(*sources, ",")
	}
	res, err := a.client.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return a.print(res)
}

func analyticsParams(name string, args []string, cfg *Config) (*mataresit.AnalyticsParams, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var p mataresit.AnalyticsParams
	fs.StringVar(&p.StartDate, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&p.EndDate, "end", "", "end date (YYYY-MM-DD)")
	fs.StringVar(&p.TeamID, "team", "", "team ID")
	fs.StringVar(&p.Currency, "currency", "", "currency code")
	if _, err := parseFlags(fs, args, cfg); err != nil {
		return nil, err
	}
	return &p, nil
}

func runAnalytics(ctx context.Context, a *app, args []string) error {
	p, err := analyticsParams("analytics", args, a.cfg)
	if err != nil {
		return err
	}
	report, err := a.client.Analytics(ctx, p)
	if err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	return a.print(report)
}

func runSummary(ctx context.Context, a *app, args []string) error {
	p, err := analyticsParams("summary", args, a.cfg)
	if err != nil {
		return err
	}
	summary, err := a.client.SpendingSummary(ctx, p)
	if err != nil {
		return fmt.Errorf("spending summary: %w", err)
	}
	return a.print(summary)
}

func runCategories(ctx context.Context, a *app, args []string) error {
	p, err := analyticsParams("categories", args, a.cfg)
	if err != nil {
		return err
	}
	categories, err := a.client.CategoryAnalytics(ctx, p)
	if err != nil {
		return fmt.Errorf("category analytics: %w", err)
	}
	return a.print(categories)
}

func runTeams(ctx context.Context, a *app, _ []string) error {
	teams, err := a.client.Teams(ctx)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	return a.print(teams)
}

func runTeamStats(ctx context.Context, a *app, args []string) error {
	id, err := requireArg(args, "team ID")
	if err != nil {
		return err
	}
	stats, err := a.client.TeamStats(ctx, id)
	if err != nil {
		return fmt.Errorf("team stats: %w", err)
	}
	return a.print(stats)
}
