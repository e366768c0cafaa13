// apitest exercises the Finnhub REST endpoints the hub depends on.
// Usage: FINNHUB_API_KEY=... go run ./cmd/apitest --symbol AAPL
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rickgao/quantdash/internal/api"
	"github.com/rickgao/quantdash/internal/config"
)

func main() {
	symbol := flag.String("symbol", "AAPL", "symbol to query")
	days := flag.Int("days", 30, "days of daily candles to fetch")
	exchange := flag.String("exchange", "US", "exchange to list symbols for")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	token := os.Getenv(config.TokenEnvVar)
	if token == "" {
		log.Fatalf("%s is not set", config.TokenEnvVar)
	}

	client := api.NewClient(
		config.DefaultRestURL,
		token,
		api.WithTimeout(30*time.Second),
		api.WithRateLimit(time.Minute, config.DefaultRequestsPerMinute),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Test 1: Quote
	fmt.Printf("=== Testing GetQuote (%s) ===\n", *symbol)
	q, err := client.GetQuote(ctx, *symbol)
	if err != nil {
		log.Fatalf("GetQuote failed: %v", err)
	}
	fmt.Printf("Current: %.2f (%+.2f, %+.2f%%)\n", q.Current, q.Change, q.PercentChange)
	fmt.Printf("Open: %.2f High: %.2f Low: %.2f PrevClose: %.2f\n", q.Open, q.High, q.Low, q.PreviousClose)
	fmt.Printf("As of: %s\n", time.Unix(q.Timestamp, 0).Format(time.RFC3339))

	// Test 2: Daily candles
	fmt.Printf("\n=== Testing GetCandles (%s, D, %d days) ===\n", *symbol, *days)
	to := time.Now()
	from := to.AddDate(0, 0, -*days)
	bars, err := client.GetCandles(ctx, *symbol, "D", from.Unix(), to.Unix())
	if err != nil {
		log.Fatalf("GetCandles failed: %v", err)
	}
	fmt.Printf("Fetched %d bars\n", len(bars))
	for i, b := range bars {
		if i >= 5 {
			fmt.Printf("  ... %d more\n", len(bars)-i)
			break
		}
		fmt.Printf("  %s O=%.2f H=%.2f L=%.2f C=%.2f V=%.0f\n",
			time.Unix(b.Timestamp, 0).Format(time.DateOnly), b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	// Test 3: Symbol listing
	fmt.Printf("\n=== Testing GetSymbols (%s) ===\n", *exchange)
	syms, err := client.GetSymbols(ctx, *exchange)
	if err != nil {
		log.Fatalf("GetSymbols failed: %v", err)
	}
	fmt.Printf("Fetched %d symbols\n", len(syms))
	for i, s := range syms {
		if i >= 3 {
			break
		}
		fmt.Printf("  %s (%s) %s\n", s.Symbol, s.MIC, s.Description)
	}

	// Test 4: Countries
	fmt.Println("\n=== Testing GetCountries ===")
	countries, err := client.GetCountries(ctx)
	if err != nil {
		log.Fatalf("GetCountries failed: %v", err)
	}
	fmt.Printf("Fetched %d countries\n", len(countries))

	fmt.Println("\n=== All API tests passed! ===")
}
