package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/ratebridge/pkg/rating"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ratebridge",
	Short:   "Multi-carrier shipping rate quoting core",
	Version: version,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch rate quotes for a canonical rate request",
	RunE:  runQuote,
}

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List registered carriers",
	RunE:  runCarriers,
}

var (
	requestFile string
	carrierName string
)

func init() {
	quoteCmd.Flags().StringVarP(&requestFile, "request", "f", "", "path to a rate request JSON file")
	quoteCmd.Flags().StringVarP(&carrierName, "carrier", "c", "", "restrict the quote to one carrier")
	_ = quoteCmd.MarkFlagRequired("request")

	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(carriersCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	registry, logger, shutdown, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	data, err := os.ReadFile(requestFile)
	if err != nil {
		return fmt.Errorf("reading request file: %w", err)
	}

	var req rating.RateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing request file: %w", err)
	}

	var resp *rating.RateResponse
	if carrierName != "" {
		resp, err = registry.GetRatesFromCarrier(ctx, carrierName, &req)
	} else {
		resp, err = registry.GetRates(ctx, &req)
	}
	if err != nil {
		logger.Error("Rate request failed", zap.Error(err))
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runCarriers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	registry, _, shutdown, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	for _, name := range registry.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
