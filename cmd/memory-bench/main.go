// Command memory-bench runs the outcome harness against a live memoryd
// instance: remember a fixed set of documents, recall a fixed set of
// queries, and score the results against the fixture's expectations
// (spec.md §1's acceptance surface, component 11).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/harness"
	"github.com/sembank/memoryd/internal/llmclient"
)

func main() {
	fixturePath := flag.String("fixture", "fixtures/outcomes.yaml", "path to the YAML outcomes fixture")
	addr := flag.String("addr", "http://localhost:8080", "memoryd RPC base URL")
	useJudge := flag.Bool("judge", true, "score expected_narrative via LLM judge")
	flag.Parse()

	allPassed, err := run(*fixturePath, *addr, *useJudge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memory-bench: %v\n", err)
		os.Exit(1)
	}
	if !allPassed {
		os.Exit(1)
	}
}

func run(fixturePath, addr string, useJudge bool) (bool, error) {
	fixture, err := harness.LoadFixture(fixturePath)
	if err != nil {
		return false, err
	}

	var judge harness.Judge
	if useJudge {
		cfg, err := config.Load()
		if err != nil {
			return false, fmt.Errorf("load config for judge: %w", err)
		}
		provider, err := llmclient.New(cfg.LLM)
		if err != nil {
			return false, fmt.Errorf("init judge provider: %w", err)
		}
		judge = harness.ProviderJudge(provider)
	}

	client := harness.NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := harness.Run(ctx, client, fixture, judge)
	if err != nil {
		return false, err
	}

	fmt.Printf("%d/%d queries hit\n", report.Hits, report.TotalQueries)
	for _, r := range report.Results {
		status := "PASS"
		if !r.Hit {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s", status, r.Query)
		if len(r.Missing) > 0 {
			fmt.Printf(" (missing: %v)", r.Missing)
		}
		if r.Judged != nil && !*r.Judged {
			fmt.Printf(" (judge: not supported)")
		}
		fmt.Println()
	}
	return report.Hits == report.TotalQueries, nil
}
