// Command sync runs one exchange-rate synchronization and prints the result.
// It exits with status 1 when the run recorded any error.
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/langowen/ratesync/deploy/config"
	"github.com/langowen/ratesync/internal/currency_fetcher/app"
	"github.com/langowen/ratesync/internal/currency_fetcher/fetcher"
	"github.com/langowen/ratesync/internal/entities"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
)

func main() {
	fs := newFlagSet(flag.ExitOnError)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading env:", err)
		os.Exit(1)
	}
	applyFlags(fs, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Stdout, cfg))
}

func newFlagSet(handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet("sync", handling)
	fs.Bool("parallel", false, "fetch all providers concurrently")
	fs.Bool("migrate", false, "apply database migrations before the run")
	return fs
}

// applyFlags overrides the environment only with flags set on the command line.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		on := f.Value.String() == "true"
		switch f.Name {
		case "parallel":
			cfg.Fetcher.Parallel = on
		case "migrate":
			cfg.Storage.Migrate = on
		}
	})
}

func run(ctx context.Context, out io.Writer, cfg *config.Config) int {
	app.InitLogger(os.Stderr, cfg.LogLevel)

	storage, err := app.InitDatabase(ctx, cfg.Storage)
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	defer storage.Close(context.Background())

	registry := app.NewRegistry(cfg.Providers, cfg.Fetcher)
	synchronizer := fetcher.NewSynchronizer(registry.Providers(), storage, storage,
		fetcher.WithParallelFetch(cfg.Fetcher.Parallel),
	)

	printProviders(out, synchronizer.AvailableProviders())

	result := synchronizer.Synchronize(ctx)
	printResult(out, result)

	return exitCode(result)
}

func printProviders(out io.Writer, providers []entities.ProviderStatus) {
	fmt.Fprintln(out, "Exchange rate synchronization")
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Provider\tStatus")
	for _, p := range providers {
		status := "disabled"
		if p.Enabled {
			status = "enabled"
		}
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, status)
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func printResult(out io.Writer, result entities.SyncResult) {
	if result.Success {
		fmt.Fprintf(out, "[OK] Synchronization completed (%s)\n", result.Outcome)
	} else {
		fmt.Fprintln(out, "[WARNING] Synchronization completed with errors")
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rates created\t%d\n", result.RatesCreated)
	fmt.Fprintf(tw, "Rates updated\t%d\n", result.RatesUpdated)
	fmt.Fprintf(tw, "Providers used\t%s\n", strings.Join(result.ProvidersUsed, ", "))
	fmt.Fprintf(tw, "Errors\t%d\n", len(result.Errors))
	_ = tw.Flush()

	if len(result.Errors) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}

func exitCode(result entities.SyncResult) int {
	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}
