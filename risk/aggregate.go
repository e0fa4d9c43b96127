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

package risk

import (
	"fmt"
	"math"
	"runtime"

	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Exposures multiplies each asset's price column by its position size. The
// result has one column per allocated asset in sorted order; a missing price
// yields a missing (NaN) exposure.
func Exposures(alloc Allocation, prices *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	assets := alloc.Assets()
	selected, err := prices.Select(assets...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingAsset, err)
	}

	exposures := &dataframe.DataFrame{
		Dates:    prices.Dates,
		ColNames: assets,
		Vals:     make([][]float64, len(assets)),
	}

	for colIdx, asset := range assets {
		qty := float64(alloc[asset])
		col := selected.Vals[colIdx]
		res := make([]float64, len(col))
		for rowIdx, price := range col {
			// NaN * qty stays NaN, including when qty is zero
			if math.IsNaN(price) {
				res[rowIdx] = math.NaN()
				continue
			}
			res[rowIdx] = qty * price
		}
		exposures.Vals[colIdx] = res
	}

	return exposures, nil
}

// scratch is the per-worker buffer set reused for every day a worker evaluates
type scratch struct {
	idx []int
	w   []float64
	sub []float64
}

func newScratch(n int) *scratch {
	return &scratch{
		idx: make([]int, 0, n),
		w:   make([]float64, n),
		sub: make([]float64, n*n),
	}
}

// variance computes w' Sigma w for day restricted to the assets that have a
// valid exposure on that day. ok is false when no asset is valid.
func (s *scratch) variance(exposures [][]float64, cov *Tensor, day int) (q float64, ok bool) {
	s.idx = s.idx[:0]
	for asset, col := range exposures {
		if !math.IsNaN(col[day]) {
			s.idx = append(s.idx, asset)
		}
	}

	k := len(s.idx)
	if k == 0 {
		return 0, false
	}

	n := cov.Assets()
	full := cov.slice(day)
	w := s.w[:k]
	sub := s.sub[:k*k]
	for a, ia := range s.idx {
		w[a] = exposures[ia][day]
		row := full[ia*n : (ia+1)*n]
		for b, ib := range s.idx {
			sub[a*k+b] = row[ib]
		}
	}

	vec := mat.NewVecDense(k, w)
	return mat.Inner(vec, mat.NewSymDense(k, sub), vec), true
}

// Volatility is the per-day output of PortfolioVolatility
type Volatility struct {
	Values []float64

	// ClampedDays lists, in ascending order, the days whose restricted
	// quadratic form was negative (or NaN) and was clamped to zero
	ClampedDays []int
}

// PortfolioVolatility reduces the covariance tensor to one volatility per day.
// exposures[i] is the exposure series of asset i and must line up with the
// tensor's asset order and day count. Days with no valid exposure have zero
// volatility. A negative quadratic form, which happens when the restricted
// sub-matrix is not positive semi-definite, is clamped to zero and reported
// in ClampedDays. Days are independent and are split across workers; workers
// <= 0 uses GOMAXPROCS.
func PortfolioVolatility(exposures [][]float64, cov *Tensor, workers int) (*Volatility, error) {
	if len(exposures) != cov.Assets() {
		return nil, fmt.Errorf("%w: %d exposure columns for %d covariance assets", ErrShapeMismatch, len(exposures), cov.Assets())
	}

	for idx, col := range exposures {
		if len(col) != cov.Days() {
			return nil, fmt.Errorf("%w: exposure column %d has %d days, covariance has %d", ErrShapeMismatch, idx, len(col), cov.Days())
		}
	}

	days := cov.Days()
	res := &Volatility{
		Values:      make([]float64, days),
		ClampedDays: []int{},
	}

	if days == 0 {
		return res, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > days {
		workers = days
	}

	clamped := make([]bool, days)
	blockSize := (days + workers - 1) / workers

	var g errgroup.Group
	for begin := 0; begin < days; begin += blockSize {
		begin := begin
		end := begin + blockSize
		if end > days {
			end = days
		}

		g.Go(func() error {
			s := newScratch(cov.Assets())
			for day := begin; day < end; day++ {
				q, ok := s.variance(exposures, cov, day)
				if !ok {
					continue
				}
				if q < 0 || math.IsNaN(q) {
					clamped[day] = true
					q = 0
				}
				res.Values[day] = math.Sqrt(q)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for day, wasClamped := range clamped {
		if wasClamped {
			res.ClampedDays = append(res.ClampedDays, day)
		}
	}

	if len(res.ClampedDays) > 0 {
		log.Warn().Int("NumClamped", len(res.ClampedDays)).Int("FirstClampedDay", res.ClampedDays[0]).Int("NumDays", days).Msg("restricted covariance was not positive semi-definite; portfolio variance clamped to zero")
	}

	return res, nil
}
