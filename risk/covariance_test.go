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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/risk"
)

func randomReturns(rng *rand.Rand, assets, days int) [][]float64 {
	returns := make([][]float64, assets)
	for ii := range returns {
		returns[ii] = make([]float64, days)
		for jj := range returns[ii] {
			returns[ii][jj] = (rng.Float64() - 0.5) * 0.1
		}
	}
	return returns
}

var _ = Describe("EstimateCovariance", func() {
	Context("with two assets and no missing data", func() {
		var (
			cov *risk.Tensor
		)

		BeforeEach(func() {
			var err error
			cov, err = risk.EstimateCovariance([][]float64{
				{0.01, -0.02},
				{0.02, 0.01},
			}, 0.2, 0.0)
			Expect(err).To(BeNil())
		})

		It("has the expected shape", func() {
			Expect(cov.Assets()).To(Equal(2))
			Expect(cov.Days()).To(Equal(2))
		})

		It("starts from the initial covariance", func() {
			for ii := 0; ii < 2; ii++ {
				for jj := 0; jj < 2; jj++ {
					Expect(cov.At(ii, jj, 0)).To(Equal(0.0))
				}
			}
		})

		It("applies the ewma update", func() {
			Expect(cov.At(0, 1, 1)).To(BeNumerically("~", 0.00016, 1e-15))
			Expect(cov.At(1, 0, 1)).To(BeNumerically("~", 0.00016, 1e-15))
			Expect(cov.At(0, 0, 1)).To(BeNumerically("~", 0.00008, 1e-15))
			Expect(cov.At(1, 1, 1)).To(BeNumerically("~", 0.00032, 1e-15))
		})

		It("returns a copy of a day as a symmetric matrix", func() {
			day := cov.Day(1)
			Expect(day.SymmetricDim()).To(Equal(2))
			Expect(day.At(0, 1)).To(Equal(cov.At(0, 1, 1)))
			day.SetSym(0, 1, 42)
			Expect(cov.At(0, 1, 1)).To(BeNumerically("~", 0.00016, 1e-15))
		})

		It("panics on out of range access", func() {
			Expect(func() { cov.At(2, 0, 0) }).To(Panic())
			Expect(func() { cov.At(0, 0, 2) }).To(Panic())
			Expect(func() { cov.Day(-1) }).To(Panic())
		})
	})

	Context("with random returns", func() {
		var (
			returns [][]float64
			initial float64
			decay   float64
		)

		BeforeEach(func() {
			rng := rand.New(rand.NewSource(7))
			returns = randomReturns(rng, 4, 250)
			initial = 0.0001
			decay = 0.94

			// knock out observations so some pairs stale-carry
			for day := 20; day < 40; day++ {
				returns[1][day] = math.NaN()
			}
			returns[3][100] = math.NaN()
			returns[0][200] = math.NaN()
		})

		It("is symmetric on every day", func() {
			cov, err := risk.EstimateCovariance(returns, decay, initial)
			Expect(err).To(BeNil())
			for day := 0; day < cov.Days(); day++ {
				for ii := 0; ii < cov.Assets(); ii++ {
					for jj := 0; jj < cov.Assets(); jj++ {
						Expect(cov.At(ii, jj, day)).To(Equal(cov.At(jj, ii, day)))
					}
				}
			}
		})

		It("carries stale values exactly when a return is missing", func() {
			cov, err := risk.EstimateCovariance(returns, decay, initial)
			Expect(err).To(BeNil())
			for day := 0; day < cov.Days()-1; day++ {
				for ii := 0; ii < cov.Assets(); ii++ {
					for jj := 0; jj < cov.Assets(); jj++ {
						if math.IsNaN(returns[ii][day]) || math.IsNaN(returns[jj][day]) {
							Expect(cov.At(ii, jj, day+1)).To(Equal(cov.At(ii, jj, day)))
						}
					}
				}
			}
		})

		It("updates pairs with both returns observed", func() {
			cov, err := risk.EstimateCovariance(returns, decay, initial)
			Expect(err).To(BeNil())
			day := 30
			expected := decay*cov.At(0, 2, day) + (1-decay)*returns[0][day]*returns[2][day]
			Expect(cov.At(0, 2, day+1)).To(Equal(expected))
		})

		It("does not depend on other assets", func() {
			full, err := risk.EstimateCovariance(returns, decay, initial)
			Expect(err).To(BeNil())

			// drop asset 2 which has no missing data
			sub, err := risk.EstimateCovariance([][]float64{returns[0], returns[1], returns[3]}, decay, initial)
			Expect(err).To(BeNil())

			mapping := []int{0, 1, 3}
			for day := 0; day < full.Days(); day++ {
				for ii, fi := range mapping {
					for jj, fj := range mapping {
						Expect(sub.At(ii, jj, day)).To(Equal(full.At(fi, fj, day)))
					}
				}
			}
		})

		It("does not modify the returns", func() {
			before := returns[2][10]
			_, err := risk.EstimateCovariance(returns, decay, initial)
			Expect(err).To(BeNil())
			Expect(returns[2][10]).To(Equal(before))
		})
	})

	DescribeTable("rejects invalid decay", func(decay float64) {
		_, err := risk.EstimateCovariance([][]float64{{0.01}}, decay, 0)
		Expect(err).To(MatchError(risk.ErrInvalidDecay))
	},
		Entry("zero", 0.0),
		Entry("one", 1.0),
		Entry("negative", -0.5),
		Entry("greater than one", 1.5),
		Entry("NaN", math.NaN()),
	)

	It("rejects a non-finite initial covariance", func() {
		_, err := risk.EstimateCovariance([][]float64{{0.01}}, 0.5, math.Inf(1))
		Expect(err).To(MatchError(risk.ErrInvalidInitialCovariance))
	})

	It("rejects ragged returns", func() {
		_, err := risk.EstimateCovariance([][]float64{{0.01, 0.02}, {0.01}}, 0.5, 0)
		Expect(err).To(MatchError(risk.ErrShapeMismatch))
	})

	It("returns an empty tensor when there are no assets", func() {
		cov, err := risk.EstimateCovariance([][]float64{}, 0.5, 0)
		Expect(err).To(BeNil())
		Expect(cov.Assets()).To(Equal(0))
		Expect(cov.Days()).To(Equal(0))
	})

	It("returns an empty tensor when there are no days", func() {
		cov, err := risk.EstimateCovariance([][]float64{{}, {}}, 0.5, 0)
		Expect(err).To(BeNil())
		Expect(cov.Assets()).To(Equal(2))
		Expect(cov.Days()).To(Equal(0))
	})
})
