// Command quotewatch subscribes to option contract symbols on the indicative
// quote stream and prints every mid-price tick. A diagnostic for checking
// credentials, contract symbols and feed liveness without running the bot.
//
// Usage:
//
//	quotewatch SPY260828C00640000 [SYMBOL...]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optionScalpBot/config"
	"optionScalpBot/internal/adapters/logger"
	"optionScalpBot/internal/stream"
)

type printer struct{}

func (printer) OnQuote(symbol string, price float64, ts time.Time) {
	fmt.Printf("%s  %s  mid=%.4f\n", ts.Format("15:04:05.000"), symbol, price)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s SYMBOL [SYMBOL...]\n", os.Args[0])
		os.Exit(2)
	}
	symbols := os.Args[1:]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	client, err := stream.New(stream.Config{
		URL:                  cfg.StreamURL,
		Key:                  cfg.APIKey,
		Secret:               cfg.SecretKey,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize quote stream client: %v", err)
	}
	client.AddObserver(printer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "stopping...")
		client.Disconnect()
		cancel()
	}()

	if err := client.ConnectWithRetry(ctx); err != nil {
		log.Fatalf("FATAL: Failed to connect: %v", err)
	}
	for _, sym := range symbols {
		if err := client.Subscribe(ctx, sym); err != nil {
			log.Fatalf("FATAL: Failed to subscribe %s: %v", sym, err)
		}
	}
	fmt.Fprintf(os.Stderr, "watching %d symbol(s), Ctrl-C to exit\n", len(symbols))

	if err := client.Listen(ctx); err != nil {
		log.Fatalf("FATAL: Stream terminated: %v", err)
	}
}
