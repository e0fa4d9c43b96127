// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/handler"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	pricesFn     string
	allocationFn string
	fromDB       bool
	beginStr     string
	endStr       string
	jsonOutput   bool
	saveResult   bool
)

func init() {
	computeCmd.Flags().StringVar(&pricesFn, "prices", "", "CSV file of prices in the wide (date,TICKER,...) or long (date,ticker,close) format")
	computeCmd.Flags().StringVar(&allocationFn, "allocation", "", "TOML file with a [positions] table of ticker = quantity")
	computeCmd.Flags().BoolVar(&fromDB, "from-db", false, "load prices from the eod table instead of a file")
	computeCmd.Flags().StringVar(&beginStr, "begin", "", "first day (YYYY-MM-DD) to compute; required with --from-db")
	computeCmd.Flags().StringVar(&endStr, "end", "", "last day (YYYY-MM-DD) to compute; defaults to today")
	computeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	computeCmd.Flags().BoolVar(&saveResult, "save", false, "write the result to the database")

	computeCmd.MarkFlagRequired("allocation")

	rootCmd.AddCommand(computeCmd)
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute daily portfolio volatility and VaR",
	Long: `Compute the daily volatility and two-sided Value-at-Risk of an allocation
from a price file or the price database and print it as a table or JSON`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}()

		alloc, err := data.LoadAllocation(allocationFn)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load allocation")
		}

		if (fromDB || saveResult) && viper.GetString("database.url") != "" {
			if err := database.Connect(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
		}

		prices, err := loadComputePrices(ctx, alloc)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load prices")
		}

		params := risk.Params{
			Decay:             viper.GetFloat64("risk.decay"),
			InitialCovariance: viper.GetFloat64("risk.initial_covariance"),
			Workers:           viper.GetInt("risk.workers"),
		}

		res, err := risk.Compute(alloc, prices, data.Returns(prices), params)
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute portfolio risk")
		}

		valueAtRisk, err := risk.ValueAtRisk(res.Volatility, viper.GetFloat64("risk.alpha"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute value at risk")
		}

		if saveResult {
			if err := database.SaveRisk(ctx, res, valueAtRisk); err != nil {
				log.Fatal().Err(err).Msg("could not save portfolio risk")
			}
		}

		if jsonOutput {
			err = writeJSON(os.Stdout, res, valueAtRisk)
		} else {
			err = writeTable(os.Stdout, res, valueAtRisk)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("could not write result")
		}
	},
}

func loadComputePrices(ctx context.Context, alloc risk.Allocation) (*dataframe.DataFrame, error) {
	begin, end, err := computeRange()
	if err != nil {
		return nil, err
	}

	if fromDB {
		if begin.IsZero() {
			return nil, errors.New("--begin is required with --from-db")
		}
		return data.LoadPrices(ctx, alloc.Assets(), begin, end)
	}

	if pricesFn == "" {
		return nil, errors.New("one of --prices or --from-db is required")
	}

	prices, err := data.ReadPricesFile(pricesFn, alloc.Assets()...)
	if err != nil {
		return nil, err
	}

	prices = prices.Trim(begin, end)
	if prices.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no rows between %s and %s", data.ErrNoPrices, pricesFn,
			begin.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return prices, nil
}

// computeRange parses --begin and --end. A blank begin is the zero time and a
// blank end is today.
func computeRange() (begin, end time.Time, err error) {
	if beginStr != "" {
		if begin, err = time.Parse("2006-01-02", beginStr); err != nil {
			return begin, end, fmt.Errorf("--begin: %w", err)
		}
	}

	end = time.Now().UTC()
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return begin, end, fmt.Errorf("--end: %w", err)
		}
	}

	if end.Before(begin) {
		return begin, end, fmt.Errorf("%w: %s > %s", data.ErrInvalidTimeRange, beginStr, endStr)
	}
	return begin, end, nil
}

func writeJSON(w io.Writer, res *risk.Result, valueAtRisk []float64) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(handler.NewRiskResponse(res, valueAtRisk))
}

func writeTable(w io.Writer, res *risk.Result, valueAtRisk []float64) error {
	if _, err := fmt.Fprintln(w, res.VolatilityFrame(valueAtRisk).Table()); err != nil {
		return err
	}

	summary := risk.Summarize(res, valueAtRisk)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"Run ID", res.RunID.String()},
		{"Assets", fmt.Sprintf("%v", res.Assets)},
		{"Days", fmt.Sprintf("%d", summary.Days)},
		{"Clamped Days", fmt.Sprintf("%d", summary.ClampedDays)},
		{"Mean Volatility", fmt.Sprintf("%.4f", summary.MeanVolatility)},
		{"Max Volatility", fmt.Sprintf("%.4f", summary.MaxVolatility)},
		{"Last Volatility", fmt.Sprintf("%.4f", summary.LastVolatility)},
		{"Mean VaR", fmt.Sprintf("%.4f", summary.MeanVaR)},
		{"Max VaR", fmt.Sprintf("%.4f", summary.MaxVaR)},
		{"Last VaR", fmt.Sprintf("%.4f", summary.LastVaR)},
	})
	table.Render()
	return nil
}
