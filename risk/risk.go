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

// Package risk estimates daily portfolio volatility from an exponentially
// weighted covariance of asset returns and converts it to Value-at-Risk.
package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultDecay = 0.94
	DefaultAlpha = 0.05
)

// Allocation maps an asset identifier to a signed position size. Its keys
// define the asset universe of a computation.
type Allocation map[string]int64

// Assets returns the allocation's identifiers in sorted order. This order is
// the integer index used by the covariance tensor and exposure columns.
func (alloc Allocation) Assets() []string {
	assets := make([]string, 0, len(alloc))
	for asset := range alloc {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Params configures a risk computation
type Params struct {
	Decay             float64 `json:"decay"`
	InitialCovariance float64 `json:"initial_covariance"`

	// Workers bounds the number of goroutines used by the aggregator; <= 0 uses GOMAXPROCS
	Workers int `json:"-"`
}

// Result is the output of Compute. Every field is aligned with Dates.
type Result struct {
	RunID       uuid.UUID            `json:"run_id"`
	Dates       []time.Time          `json:"dates"`
	Assets      []string             `json:"assets"`
	Exposures   *dataframe.DataFrame `json:"-"`
	Covariance  *Tensor              `json:"-"`
	Volatility  []float64            `json:"volatility"`
	ClampedDays []int                `json:"clamped_days"`
}

// Summary describes a volatility and VaR series
type Summary struct {
	Days           int     `json:"days"`
	ClampedDays    int     `json:"clamped_days"`
	MeanVolatility float64 `json:"mean_volatility"`
	MaxVolatility  float64 `json:"max_volatility"`
	LastVolatility float64 `json:"last_volatility"`
	MeanVaR        float64 `json:"mean_var"`
	MaxVaR         float64 `json:"max_var"`
	LastVaR        float64 `json:"last_var"`
}

// Compute estimates the daily portfolio volatility for alloc. prices and returns
// must share the same date index and contain a column for every allocated asset;
// extra columns are ignored. Missing observations are NaN. Neither input is
// modified.
func Compute(alloc Allocation, prices, returns *dataframe.DataFrame, params Params) (*Result, error) {
	if !(params.Decay > 0 && params.Decay < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDecay, params.Decay)
	}

	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("price panel: %w", err)
	}

	if err := returns.Validate(); err != nil {
		return nil, fmt.Errorf("return panel: %w", err)
	}

	if err := prices.AlignedWith(returns); err != nil {
		return nil, err
	}

	assets := alloc.Assets()
	selectedReturns, err := returns.Select(assets...)
	if err != nil {
		return nil, fmt.Errorf("return panel: %w: %w", ErrMissingAsset, err)
	}

	// a zero or infinite price turns into an infinite return that the
	// recursion would carry into every later day
	if err := checkPanel(prices, assets, ErrInvalidPrice, func(x float64) bool {
		return x > 0 && !math.IsInf(x, 1)
	}); err != nil {
		return nil, fmt.Errorf("price panel: %w", err)
	}

	if err := checkPanel(selectedReturns, assets, ErrInvalidReturn, func(x float64) bool {
		return !math.IsInf(x, 0)
	}); err != nil {
		return nil, fmt.Errorf("return panel: %w", err)
	}

	subLog := log.With().Int("NumAssets", len(assets)).Int("NumDays", prices.Len()).Logger()
	subLog.Debug().Float64("Decay", params.Decay).Float64("InitialCovariance", params.InitialCovariance).Msg("computing portfolio risk")

	var (
		exposures *dataframe.DataFrame
		cov       *Tensor
		g         errgroup.Group
	)

	g.Go(func() error {
		var err error
		exposures, err = Exposures(alloc, prices)
		if err != nil {
			return fmt.Errorf("price panel: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		cov, err = estimateCovariance(selectedReturns.Vals, returns.Len(), params.Decay, params.InitialCovariance)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	vol, err := PortfolioVolatility(exposures.Vals, cov, params.Workers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       uuid.New(),
		Dates:       prices.Dates,
		Assets:      assets,
		Exposures:   exposures,
		Covariance:  cov,
		Volatility:  vol.Values,
		ClampedDays: vol.ClampedDays,
	}

	subLog.Info().Str("RunID", res.RunID.String()).Int("NumClamped", len(res.ClampedDays)).Msg("computed portfolio risk")

	return res, nil
}

// checkPanel reports the first observed value of the allocated assets that
// fails valid. Missing (NaN) values are skipped.
func checkPanel(df *dataframe.DataFrame, assets []string, sentinel error, valid func(float64) bool) error {
	selected, err := df.Select(assets...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingAsset, err)
	}

	for colIdx, col := range selected.Vals {
		for rowIdx, val := range col {
			if !math.IsNaN(val) && !valid(val) {
				return fmt.Errorf("%w: %s on %s is %v", sentinel, selected.ColNames[colIdx],
					selected.Dates[rowIdx].Format("2006-01-02"), val)
			}
		}
	}

	return nil
}

// Summarize computes descriptive statistics of a volatility series and the
// matching VaR series
func Summarize(res *Result, valueAtRisk []float64) Summary {
	summary := Summary{
		Days:        len(res.Volatility),
		ClampedDays: len(res.ClampedDays),
	}

	if len(res.Volatility) == 0 {
		return summary
	}

	summary.MeanVolatility = stat.Mean(res.Volatility, nil)
	summary.MaxVolatility = floats.Max(res.Volatility)
	summary.LastVolatility = res.Volatility[len(res.Volatility)-1]

	if len(valueAtRisk) == 0 {
		return summary
	}

	summary.MeanVaR = stat.Mean(valueAtRisk, nil)
	summary.MaxVaR = floats.Max(valueAtRisk)
	summary.LastVaR = valueAtRisk[len(valueAtRisk)-1]

	return summary
}

// VolatilityFrame returns the volatility (and, when given, VaR) series as a
// dataframe indexed by date
func (res *Result) VolatilityFrame(valueAtRisk []float64) *dataframe.DataFrame {
	df := &dataframe.DataFrame{
		Dates:    res.Dates,
		ColNames: []string{"volatility"},
		Vals:     [][]float64{res.Volatility},
	}

	if len(valueAtRisk) == len(res.Volatility) {
		df.ColNames = append(df.ColNames, "var")
		df.Vals = append(df.Vals, valueAtRisk)
	}

	if res.Exposures != nil {
		valid := res.Exposures.Count(func(x float64) bool { return !math.IsNaN(x) })
		df.ColNames = append(df.ColNames, "valid_assets")
		df.Vals = append(df.Vals, valid.Vals[0])
	}

	return df
}
