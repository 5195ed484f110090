package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/refdata"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
)

func main() {
	marketsFlag := flag.String("markets", "", "Comma separated market codes (default: every supported market in the reference data)")
	asJSON := flag.Bool("json", false, "Print the raw status as JSON")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run cmd/publication-status/main.go [--markets=FI,DE] [--json] <product-ref>...")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	markets := splitMarkets(*marketsFlag)
	if len(markets) == 0 {
		tables, err := refdata.LoadFile(cfg.RefDataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load reference data: %v\n", err)
			os.Exit(1)
		}
		for code, m := range tables.Markets {
			if m.Supported {
				markets = append(markets, code)
			}
		}
		sort.Strings(markets)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	client := shopify.NewClient(cfg.Shopify, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := false
	for _, ref := range flag.Args() {
		status, err := client.ProductPublicationStatus(ctx, ref, markets)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", ref, err)
			failed = true
			continue
		}

		if *asJSON {
			out, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(out))
			continue
		}

		fmt.Printf("%s  %q  status=%s\n", status.ProductRef, status.Title, status.Status)
		for _, m := range markets {
			mark := "✅"
			if !status.Markets[m] {
				mark = "❌"
			}
			fmt.Printf("   %s market %s\n", mark, m)
		}
		for _, p := range status.Publications {
			fmt.Printf("   channel %-30s published=%t\n", p.Name, p.IsPublished)
		}
		fmt.Println()
	}

	if failed {
		os.Exit(1)
	}
}

func splitMarkets(csv string) []string {
	var out []string
	for _, m := range strings.Split(csv, ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return out
}
