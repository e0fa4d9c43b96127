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

package risk_test

import (
	"math"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/risk"
)

var _ = Describe("Exposures", func() {
	var (
		prices *dataframe.DataFrame
	)

	BeforeEach(func() {
		prices = &dataframe.DataFrame{
			Dates: []time.Time{
				time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			},
			ColNames: []string{"SOLH11", "HASH11", "IVVB11"},
			Vals: [][]float64{
				{10, math.NaN()},
				{20, 21},
				{300, 301},
			},
		}
	})

	It("multiplies price by position size in sorted asset order", func() {
		exposures, err := risk.Exposures(risk.Allocation{"SOLH11": -5, "HASH11": 3}, prices)
		Expect(err).To(BeNil())
		Expect(exposures.ColNames).To(Equal([]string{"HASH11", "SOLH11"}))
		Expect(exposures.Vals[0]).To(Equal([]float64{60, 63}))
		Expect(exposures.Vals[1][0]).To(Equal(-50.0))
	})

	It("keeps missing prices missing even with a zero position", func() {
		exposures, err := risk.Exposures(risk.Allocation{"SOLH11": 0}, prices)
		Expect(err).To(BeNil())
		Expect(exposures.Vals[0][0]).To(Equal(0.0))
		Expect(math.IsNaN(exposures.Vals[0][1])).To(BeTrue())
	})

	It("fails when an allocated asset has no price column", func() {
		_, err := risk.Exposures(risk.Allocation{"BOVA11": 1}, prices)
		Expect(err).To(MatchError(risk.ErrMissingAsset))
		Expect(err).To(MatchError(dataframe.ErrColumnNotFound))
	})
})

var _ = Describe("PortfolioVolatility", func() {
	It("computes the quadratic form over exposures", func() {
		cov, err := risk.EstimateCovariance([][]float64{
			{0.01, -0.02},
			{0.02, 0.01},
		}, 0.2, 0.0)
		Expect(err).To(BeNil())

		vol, err := risk.PortfolioVolatility([][]float64{
			{100, 100},
			{50, 50},
		}, cov, 1)
		Expect(err).To(BeNil())
		Expect(vol.Values).To(HaveLen(2))
		Expect(vol.Values[0]).To(Equal(0.0))

		// 100^2*0.00008 + 2*100*50*0.00016 + 50^2*0.00032 = 3.2
		Expect(vol.Values[1]).To(BeNumerically("~", math.Sqrt(3.2), 1e-12))
		Expect(vol.ClampedDays).To(BeEmpty())
	})

	It("restricts the computation to assets with valid exposure", func() {
		cov, err := risk.EstimateCovariance([][]float64{
			{0.01, -0.02},
			{0.02, 0.01},
		}, 0.2, 0.0)
		Expect(err).To(BeNil())

		vol, err := risk.PortfolioVolatility([][]float64{
			{100, 100},
			{50, math.NaN()},
		}, cov, 1)
		Expect(err).To(BeNil())

		// only asset 0 on day 1: 100^2*0.00008
		Expect(vol.Values[1]).To(BeNumerically("~", math.Sqrt(0.8), 1e-12))
	})

	It("yields zero when every asset is missing", func() {
		cov, err := risk.EstimateCovariance([][]float64{{0.01, 0.02}, {0.03, 0.04}}, 0.5, 0.1)
		Expect(err).To(BeNil())

		vol, err := risk.PortfolioVolatility([][]float64{
			{math.NaN(), 10},
			{math.NaN(), 10},
		}, cov, 1)
		Expect(err).To(BeNil())
		Expect(vol.Values[0]).To(Equal(0.0))
		Expect(vol.Values[1]).To(BeNumerically(">", 0.0))
		Expect(vol.ClampedDays).To(BeEmpty())
	})

	It("clamps a negative quadratic form to zero and reports the day", func() {
		// a constant negative covariance is not positive semi-definite
		cov, err := risk.EstimateCovariance([][]float64{{math.NaN(), 0.01}, {math.NaN(), 0.02}}, 0.5, -1.0)
		Expect(err).To(BeNil())

		vol, err := risk.PortfolioVolatility([][]float64{
			{1, 1},
			{1, math.NaN()},
		}, cov, 1)
		Expect(err).To(BeNil())
		Expect(vol.Values).To(Equal([]float64{0, 0}))
		Expect(vol.ClampedDays).To(Equal([]int{0, 1}))
	})

	It("produces identical results regardless of worker count", func() {
		rng := rand.New(rand.NewSource(11))
		returns := randomReturns(rng, 5, 97)
		exposures := make([][]float64, 5)
		for ii := range exposures {
			exposures[ii] = make([]float64, 97)
			for jj := range exposures[ii] {
				if rng.Float64() < 0.2 {
					exposures[ii][jj] = math.NaN()
				} else {
					exposures[ii][jj] = (rng.Float64() - 0.3) * 1000
				}
			}
		}

		cov, err := risk.EstimateCovariance(returns, 0.9, 0.0)
		Expect(err).To(BeNil())

		serial, err := risk.PortfolioVolatility(exposures, cov, 1)
		Expect(err).To(BeNil())

		for _, workers := range []int{0, 2, 3, 8, 200} {
			parallel, err := risk.PortfolioVolatility(exposures, cov, workers)
			Expect(err).To(BeNil())
			Expect(parallel.Values).To(Equal(serial.Values))
			Expect(parallel.ClampedDays).To(Equal(serial.ClampedDays))
		}

		for _, v := range serial.Values {
			Expect(v).To(BeNumerically(">=", 0))
		}
	})

	It("rejects exposures that do not match the tensor", func() {
		cov, err := risk.EstimateCovariance([][]float64{{0.01, 0.02}}, 0.5, 0)
		Expect(err).To(BeNil())

		_, err = risk.PortfolioVolatility([][]float64{{1, 2}, {1, 2}}, cov, 1)
		Expect(err).To(MatchError(risk.ErrShapeMismatch))

		_, err = risk.PortfolioVolatility([][]float64{{1, 2, 3}}, cov, 1)
		Expect(err).To(MatchError(risk.ErrShapeMismatch))
	})

	It("handles an empty tensor", func() {
		cov, err := risk.EstimateCovariance([][]float64{}, 0.5, 0)
		Expect(err).To(BeNil())

		vol, err := risk.PortfolioVolatility([][]float64{}, cov, 0)
		Expect(err).To(BeNil())
		Expect(vol.Values).To(BeEmpty())
	})
})
