package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/postgres"
)

func main() {
	attempt := flag.String("attempt", "", "Checkout attempt id, as returned by POST /v1/checkout/sessions")
	asJSON := flag.Bool("json", false, "Print the events as JSON")
	flag.Parse()

	if *attempt == "" {
		fmt.Println("Usage: go run cmd/checkout-trail/main.go --attempt=<attempt-id> [--json]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Database.Enabled() {
		fmt.Fprintln(os.Stderr, "DB_HOST is not set; checkout events are only kept in the database")
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	events, err := postgres.NewCheckoutEventRepository(db, logger).ListByAttemptID(ctx, *attempt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list checkout events: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(events); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode events: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(events) == 0 {
		fmt.Printf("❌ No checkout events for attempt %s\n", *attempt)
		os.Exit(1)
	}

	fmt.Printf("🔍 %d checkout event(s) for attempt %s\n\n", len(events), *attempt)
	for _, ev := range events {
		printEvent(ev)
	}
}

func printEvent(ev *domain.CheckoutEvent) {
	icon := "❌"
	if ev.Outcome == string(domain.OutcomeCreated) {
		icon = "✅"
	}
	fmt.Printf("%s %s  %s  tenant=%s market=%s\n", icon, ev.CreatedAt.Format(time.RFC3339), ev.Outcome, ev.Tenant, ev.Market)
	if ev.SessionID != nil {
		fmt.Printf("   Session: %s\n", *ev.SessionID)
	}
	if ev.Detail.RedirectURL != "" {
		fmt.Printf("   Redirect: %s\n", ev.Detail.RedirectURL)
	}
	if ev.Detail.Kind != "" {
		fmt.Printf("   %s: %s\n", ev.Detail.Kind, ev.Detail.Message)
	}
	for _, r := range ev.Detail.Reasons {
		fmt.Printf("   - line %d [%s] %s\n", r.LineIndex, r.Kind, r.Message)
	}
	fmt.Println()
}
