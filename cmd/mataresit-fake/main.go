// Command mataresit-fake serves an in-memory Mataresit API for local
// development and for running the examples without a live account.
//
//	mataresit-fake -addr 127.0.0.1:8787 -sequence pending,pending,complete
//	MATARESIT_BASE_URL=http://127.0.0.1:8787 MATARESIT_API_KEY=mk_test_fakeserver mataresit health
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mataresit/mataresit-go/internal/config"
	"github.com/mataresit/mataresit-go/internal/fakeserver"
	"github.com/mataresit/mataresit-go/internal/logger"
)

func main() {
	settings := config.MustLoad()

	addr := flag.String("addr", settings.FakeAddr, "listen address")
	apiKey := flag.String("api-key", cmp.Or(settings.APIKey, fakeserver.DefaultAPIKey), "API key to accept")
	sequence := flag.String("sequence", "pending,complete", "processing statuses returned by successive receipt reads")
	rps := flag.Float64("rate", 0, "requests per second before answering 429 (0 = unlimited)")
	burst := flag.Int("burst", 10, "rate limit burst")
	flag.Parse()

	log, err := logger.New(cmp.Or(os.Getenv("LOG_LEVEL"), "info"), settings.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	opts := []fakeserver.Option{
		fakeserver.WithAPIKey(*apiKey),
		fakeserver.WithLogger(log),
	}
	if *sequence != "" {
		opts = append(opts, fakeserver.WithProcessingSequence(strings.Split(*sequence, ",")...))
	}
	if *rps > 0 {
		opts = append(opts, fakeserver.WithRateLimit(rate.Limit(*rps), *burst))
	}

	srv := fakeserver.New(opts...).NewHTTPServer(*addr)

	go func() {
		log.Info("fake Mataresit API listening",
			zap.String("addr", *addr),
			zap.String("base_url", "http://"+*addr),
			zap.String("api_key", *apiKey),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
