// Command mataresit is a command-line client for the Mataresit API.
//
// Settings come from the environment or a .env file (see internal/config):
//
//	MATARESIT_API_KEY=mk_live_... mataresit health
//	mataresit list-receipts -merchant coffee -limit 5
//	mataresit create-receipt -merchant "Coffee Shop" -date 2025-01-15 -total 15.50 -wait
//	mataresit bulk-upload expenses.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	mataresit "github.com/mataresit/mataresit-go"
	"github.com/mataresit/mataresit-go/internal/config"
	"github.com/mataresit/mataresit-go/internal/logger"
)

const usage = `usage: mataresit <command> [flags] [args]

commands:
  health                          check API status and key scopes
  list-receipts [flags]           list receipts
  get-receipt <id>                show one receipt
  create-receipt [flags]          create a receipt (-wait to wait for processing)
  update-receipt <id> [flags]     update receipt fields
  delete-receipt <id>             delete a receipt
  wait <id> [flags]               wait for a receipt to finish processing
  bulk-upload <file|->            upload receipts from a JSON or YAML list
  list-claims [flags]             list claims
  create-claim [flags]            create a claim
  search <query> [flags]          semantic search
  analytics [flags]               full analytics report
  summary [flags]                 spending summary
  categories [flags]              spending by category
  teams                           list teams
  team-stats <team-id>            team statistics`

// errUsage marks errors that should be followed by the usage text.
var errUsage = errors.New("invalid usage")

const missingKeyHelp = "Create a .env file with: MATARESIT_API_KEY=mk_live_your_api_key_here"

// Config holds the I/O streams used by the command.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config wired to the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// exitFunc is os.Exit, replaceable in tests.
var exitFunc = os.Exit

// clientFactory builds the API client from loaded settings.
var clientFactory = func(settings *config.Config, log *zap.Logger) (*mataresit.Client, error) {
	return mataresit.New(settings.APIKey,
		mataresit.WithBaseURL(settings.BaseURL),
		mataresit.WithTimeout(settings.Timeout),
		mataresit.WithRetries(settings.MaxRetries),
		mataresit.WithRateLimit(rateLimit(settings.RateLimit), 1),
		mataresit.WithLogger(log),
	)
}

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"health":         runHealth,
	"list-receipts":  runListReceipts,
	"get-receipt":    runGetReceipt,
	"create-receipt": runCreateReceipt,
	"update-receipt": runUpdateReceipt,
	"delete-receipt": runDeleteReceipt,
	"wait":           runWait,
	"bulk-upload":    runBulkUpload,
	"list-claims":    runListClaims,
	"create-claim":   runCreateClaim,
	"search":         runSearch,
	"analytics":      runAnalytics,
	"summary":        runSummary,
	"categories":     runCategories,
	"teams":          runTeams,
	"team-stats":     runTeamStats,
}

// app carries what every command needs.
type app struct {
	client   *mataresit.Client
	settings *config.Config
	log      *zap.Logger
	cfg      *Config
}

func run(args []string, cfg *Config) error {
	if len(args) < 2 {
		return errUsage
	}
	name := args[1]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprintln(cfg.Stdout, usage)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}

	settings, err := config.Load()
	if err != nil {
		return err
	}
	if err := settings.RequireAPIKey(); err != nil {
		return err
	}

	log, err := logger.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := clientFactory(settings, log)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	return cmd(ctx, &app{client: client, settings: settings, log: log, cfg: cfg}, args[2:])
}

func (a *app) print(v any) error {
	return writeOutput(a.cfg.Stdout, a.settings.OutputFormat, v)
}

// parseFlags parses args with fs and returns the remaining positional args.
func parseFlags(fs *flag.FlagSet, args []string, cfg *Config) ([]string, error) {
	fs.SetOutput(cfg.Stderr)
	// Allow "get-receipt <id> -flag" as well as flags first.
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) > 0 {
			positional = append(positional, args[0])
			args = args[1:]
		}
	}
	return positional, nil
}

func requireArg(positional []string, what string) (string, error) {
	if len(positional) == 0 || strings.TrimSpace(positional[0]) == "" {
		return "", fmt.Errorf("missing %s", what)
	}
	return positional[0], nil
}

// errorMessage renders err for the terminal, adding setup instructions when
// the API key is missing.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		return fmt.Sprintf("Error: %v\n%s", err, missingKeyHelp)
	case errors.Is(err, errUsage):
		return fmt.Sprintf("%v\n\n%s", err, usage)
	}
	return err.Error()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exitFunc(1)
}
