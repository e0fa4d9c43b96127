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

	"gonum.org/v1/gonum/stat/distuv"
)

// ZScore returns the two-sided standard normal quantile for tail probability
// alpha, i.e. the x where P(Z <= x) = 1 - alpha/2
func ZScore(alpha float64) (float64, error) {
	if !(alpha > 0 && alpha < 1) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidTailProbability, alpha)
	}
	return distuv.UnitNormal.Quantile(1 - alpha/2), nil
}

// ValueAtRisk scales each daily volatility by the two-sided normal quantile
// for alpha. The returned slice has the same length as volatility.
func ValueAtRisk(volatility []float64, alpha float64) ([]float64, error) {
	z, err := ZScore(alpha)
	if err != nil {
		return nil, err
	}

	res := make([]float64, len(volatility))
	for idx, sigma := range volatility {
		res[idx] = z * sigma
	}
	return res, nil
}
