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

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Tensor holds the covariance between every pair of assets for every day.
// Storage is a single day-major buffer: the N x N matrix for a day is
// contiguous and row major, so entry (i, j, day) lives at (day*N+i)*N+j.
// A Tensor is never modified once EstimateCovariance returns.
type Tensor struct {
	assets int
	days   int
	data   []float64
}

// Assets returns the number of assets (N)
func (c *Tensor) Assets() int {
	return c.assets
}

// Days returns the number of days (T)
func (c *Tensor) Days() int {
	return c.days
}

// At returns the covariance between assets i and j on day
func (c *Tensor) At(i, j, day int) float64 {
	if i < 0 || i >= c.assets || j < 0 || j >= c.assets || day < 0 || day >= c.days {
		panic(fmt.Sprintf("covariance index (%d, %d, %d) out of range (%d, %d, %d)", i, j, day, c.assets, c.assets, c.days))
	}
	return c.data[(day*c.assets+i)*c.assets+j]
}

// Day returns a copy of the covariance matrix for day
func (c *Tensor) Day(day int) *mat.SymDense {
	if day < 0 || day >= c.days {
		panic(fmt.Sprintf("day %d out of range [0, %d)", day, c.days))
	}
	if c.assets == 0 {
		return &mat.SymDense{}
	}
	vals := make([]float64, c.assets*c.assets)
	copy(vals, c.slice(day))
	return mat.NewSymDense(c.assets, vals)
}

// slice returns the backing storage for day without copying
func (c *Tensor) slice(day int) []float64 {
	stride := c.assets * c.assets
	return c.data[day*stride : (day+1)*stride]
}

// EstimateCovariance runs the EWMA recursion over returns, where returns[i] is the
// daily return series of asset i. Every pair starts at initial on day 0; on each
// following day a pair whose returns were both observed on the previous day is
// updated as
//
//	C[i,j,t+1] = decay*C[i,j,t] + (1-decay)*r[t,i]*r[t,j]
//
// and a pair with a missing (NaN) return carries its previous value forward.
// Only the upper triangle is computed; the lower triangle is mirrored.
func EstimateCovariance(returns [][]float64, decay, initial float64) (*Tensor, error) {
	days := 0
	if len(returns) > 0 {
		days = len(returns[0])
	}
	return estimateCovariance(returns, days, decay, initial)
}

// estimateCovariance is EstimateCovariance with an explicit day count so that
// an empty asset universe still spans every day of the panel
func estimateCovariance(returns [][]float64, t int, decay, initial float64) (*Tensor, error) {
	if !(decay > 0 && decay < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDecay, decay)
	}

	if math.IsNaN(initial) || math.IsInf(initial, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidInitialCovariance, initial)
	}

	n := len(returns)
	for idx, col := range returns {
		if len(col) != t {
			return nil, fmt.Errorf("%w: asset %d has %d returns, expected %d", ErrShapeMismatch, idx, len(col), t)
		}
	}

	tensor := &Tensor{
		assets: n,
		days:   t,
		data:   make([]float64, n*n*t),
	}

	if n == 0 || t == 0 {
		return tensor, nil
	}

	log.Debug().Int("NumAssets", n).Int("NumDays", t).Float64("Decay", decay).Msg("estimating ewma covariance")

	first := tensor.slice(0)
	for idx := range first {
		first[idx] = initial
	}

	weight := 1.0 - decay
	for day := 0; day < t-1; day++ {
		curr := tensor.slice(day)
		next := tensor.slice(day + 1)

		for i := 0; i < n; i++ {
			ri := returns[i][day]
			validI := !math.IsNaN(ri)

			for j := i; j < n; j++ {
				val := curr[i*n+j]
				if rj := returns[j][day]; validI && !math.IsNaN(rj) {
					val = decay*val + weight*ri*rj
				}
				next[i*n+j] = val
				next[j*n+i] = val
			}
		}
	}

	return tensor, nil
}
