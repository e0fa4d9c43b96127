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

package dataframe

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Count creates a new dataframe with the number of columns where the expression lambda func(float64) bool evaluates to true is placed
// in the `count` column
func (df *DataFrame) Count(lambda func(x float64) bool) *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		Vals:     [][]float64{make([]float64, df.Len())},
		ColNames: []string{"count"},
	}

	for rowIdx := range df.Dates {
		cnt := 0
		for _, col := range df.Vals {
			if lambda(col[rowIdx]) {
				cnt++
			}
		}
		res.Vals[0][rowIdx] = float64(cnt)
	}

	return res
}

// FillRow replaces NaN values in row rowIdx with val and returns a new dataframe
func (df *DataFrame) FillRow(rowIdx int, val float64) *DataFrame {
	df = df.Copy()
	if rowIdx < 0 || rowIdx >= df.Len() {
		return df
	}

	for colIdx := range df.Vals {
		if math.IsNaN(df.Vals[colIdx][rowIdx]) {
			df.Vals[colIdx][rowIdx] = val
		}
	}
	return df
}

// PctChange computes the simple return of every column between consecutive rows
// and returns a new dataframe with the same shape. A value is NaN on the first row
// and wherever either bracketing value is NaN; prices are never forward filled.
func (df *DataFrame) PctChange() *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx, col := range df.Vals {
		out := make([]float64, len(col))
		if len(col) > 0 {
			out[0] = math.NaN()
		}
		if len(col) > 1 {
			// NaN on either side propagates through the division
			floats.DivTo(out[1:], col[1:], col[:len(col)-1])
			floats.AddConst(-1.0, out[1:])
		}
		res.Vals[colIdx] = out
	}

	return res
}
