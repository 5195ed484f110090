package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	catalogstore "github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/firestore"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
)

func main() {
	tenant := flag.String("tenant", "", "Tenant whose catalog holds --product")
	product := flag.String("product", "", "Catalog product id; checks every linked variant")
	wait := flag.Duration("wait", 0, "Keep polling with exponential backoff until every ref is visible, up to this long")
	debug := flag.Bool("debug", false, "Print debug logs")
	flag.Parse()

	if flag.NArg() == 0 && *product == "" {
		fmt.Println("Usage: go run cmd/check-variants/main.go [--wait=2m] <variant-ref>...")
		fmt.Println("       go run cmd/check-variants/main.go --tenant=LUNA --product=<id> [--wait=2m]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	refs := flag.Args()
	if *product != "" {
		if *tenant == "" {
			*tenant = cfg.Tenancy.DefaultTenant
		}
		linked, unlinked, err := catalogRefs(ctx, cfg, *tenant, *product, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read catalog: %v\n", err)
			os.Exit(1)
		}
		for _, id := range unlinked {
			fmt.Printf("⚠️  variant %s has no platform variant ref (not checkout-eligible)\n", id)
		}
		refs = append(refs, linked...)
	}
	if len(refs) == 0 {
		fmt.Println("No variant refs to check")
		os.Exit(1)
	}

	client := shopify.NewClient(cfg.Shopify, logger)

	check := func() (map[string]domain.VisibilityStatus, error) {
		statuses, err := client.VerifyVariants(ctx, refs)
		if err != nil {
			return nil, err
		}
		if *wait > 0 && countStatus(statuses, domain.VisibilityNotFound) > 0 {
			return statuses, fmt.Errorf("%d refs not yet visible", countStatus(statuses, domain.VisibilityNotFound))
		}
		return statuses, nil
	}

	var statuses map[string]domain.VisibilityStatus
	if *wait > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 2 * time.Second
		b.MaxInterval = 30 * time.Second
		statuses, err = backoff.Retry(ctx, check,
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(*wait),
			backoff.WithNotify(func(err error, next time.Duration) {
				fmt.Printf("… %v, retrying in %s\n", err, next.Round(time.Second))
			}),
		)
	} else {
		statuses, err = check()
	}
	// a timed-out wait still carries the last statuses seen
	if statuses == nil {
		fmt.Fprintf(os.Stderr, "❌ Check failed: %v\n", err)
		os.Exit(1)
	}

	sort.Strings(refs)
	for _, ref := range refs {
		st := statuses[ref]
		mark := "✅"
		if st != domain.VisibilityAccessible {
			mark = "❌"
		}
		fmt.Printf("%s %-45s %s\n", mark, ref, st)
	}

	if countStatus(statuses, domain.VisibilityAccessible) != len(statuses) {
		os.Exit(2)
	}
}

func catalogRefs(ctx context.Context, cfg *config.Config, tenant, productID string, logger *zap.Logger) (linked, unlinked []string, err error) {
	fsClient, err := catalogstore.NewClient(ctx, cfg.Firestore, logger)
	if err != nil {
		return nil, nil, err
	}
	defer fsClient.Close()

	catalog := catalogstore.NewCatalogRepository(fsClient, cfg.Firestore.RootCollection, logger)
	product, err := catalog.GetProduct(ctx, tenant, productID)
	if err != nil {
		return nil, nil, err
	}
	variants, err := catalog.ListVariants(ctx, tenant, productID)
	if err != nil {
		return nil, nil, err
	}

	fmt.Printf("Product %s (%s), active=%t, markets: %s\n", product.ID, product.Name, product.Active, marketList(product.Markets))
	for _, v := range variants {
		if !v.HasPlatformRef() {
			unlinked = append(unlinked, v.ID)
			continue
		}
		ref := *v.PlatformVariantRef
		linked = append(linked, ref)

		// a variant without its own market data follows the product
		markets := product.Markets
		if v.Markets != nil {
			markets = *v.Markets
		}
		fmt.Printf("   variant %-12s platform id %-16s markets: %s\n", v.ID, shopify.NumericID(shopify.VariantGID(ref)), marketList(markets))
	}
	return linked, unlinked, nil
}

func marketList(m domain.MarketEligibility) string {
	codes := m.Codes()
	if len(codes) == 0 {
		return "none"
	}
	return strings.Join(codes, ", ")
}

func countStatus(statuses map[string]domain.VisibilityStatus, want domain.VisibilityStatus) int {
	n := 0
	for _, st := range statuses {
		if st == want {
			n++
		}
	}
	return n
}
