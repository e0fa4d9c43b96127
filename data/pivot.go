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

// Package data loads price panels and allocations from files and the
// price database and turns them into the panels consumed by package risk.
package data

import (
	"math"
	"sort"
	"time"

	"github.com/penny-vault/pv-risk/dataframe"
)

// Observation is a single closing price of one ticker on one day
type Observation struct {
	Date   time.Time
	Ticker string
	Close  float64
}

// Pivot turns long-format observations into a date indexed panel with one
// column per ticker. When tickers is non-empty only those tickers are kept
// and every one of them gets a column, even if it was never observed.
// Columns are sorted; days on which a ticker has no observation are NaN.
// If a ticker is observed more than once on a day the last observation wins.
func Pivot(observations []Observation, tickers ...string) *dataframe.DataFrame {
	// requested tickers always get a column
	keep := make(map[string]bool, len(tickers))
	colSet := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		keep[ticker] = true
		colSet[ticker] = true
	}

	dateSet := make(map[time.Time]bool)
	for _, obs := range observations {
		if len(keep) > 0 && !keep[obs.Ticker] {
			continue
		}
		colSet[obs.Ticker] = true
		dateSet[normalizeDate(obs.Date)] = true
	}

	colNames := make([]string, 0, len(colSet))
	for ticker := range colSet {
		colNames = append(colNames, ticker)
	}
	sort.Strings(colNames)

	dates := make([]time.Time, 0, len(dateSet))
	for dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIdx := make(map[time.Time]int, len(dates))
	for idx, dt := range dates {
		rowIdx[dt] = idx
	}

	colIdx := make(map[string]int, len(colNames))
	vals := make([][]float64, len(colNames))
	for idx, ticker := range colNames {
		colIdx[ticker] = idx
		col := make([]float64, len(dates))
		for ii := range col {
			col[ii] = math.NaN()
		}
		vals[idx] = col
	}

	for _, obs := range observations {
		if len(keep) > 0 && !keep[obs.Ticker] {
			continue
		}
		vals[colIdx[obs.Ticker]][rowIdx[normalizeDate(obs.Date)]] = obs.Close
	}

	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: colNames,
		Vals:     vals,
	}
}

// Returns computes simple daily returns of prices. The first day has no
// previous price; it is filled with zero so that the covariance recursion
// starts from its initial value.
func Returns(prices *dataframe.DataFrame) *dataframe.DataFrame {
	return prices.PctChange().FillRow(0, 0)
}

// normalizeDate strips the time of day so that observations from different
// sources land on the same row
func normalizeDate(dt time.Time) time.Time {
	year, month, day := dt.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
