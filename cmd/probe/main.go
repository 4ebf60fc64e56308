package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"market-relay/src/client"
	"market-relay/src/config"
	"market-relay/src/logger"
	"market-relay/src/models"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: probe [flags] tickers | history [ticker]\n\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	url := flag.String("url", "", "query service URL (overrides client.url)")
	duration := flag.String("duration", models.DefaultDuration, "requested duration")
	barSize := flag.String("bar-size", models.DefaultBarSize, "requested bar size")
	flag.Usage = usage
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		conf.Client.URL = *url
	}

	qc := client.NewQueryClient(conf.Client, logger.NewLogger(conf.LogLevel, "QueryClient"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.Client.Retries+1)*qc.Timeout+5*time.Second)
	defer cancel()

	var (
		result  any
		callErr error
	)
	switch flag.Arg(0) {
	case "tickers":
		result, callErr = qc.Tickers(ctx)
	case "history":
		result, callErr = qc.HistoricalData(ctx, models.MQueryRequest{
			Ticker:   flag.Arg(1),
			Duration: *duration,
			BarSize:  *barSize,
		})
	default:
		usage()
		os.Exit(2)
	}

	if callErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", client.Classify(callErr), callErr)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}
