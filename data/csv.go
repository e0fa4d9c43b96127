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

package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// longHeader is the header of a long-format price file
var longHeader = []string{"date", "ticker", "close"}

// ReadPricesFile reads a price panel from a CSV file. Both the wide format
// (date,TICK1,TICK2,...) and the long format (date,ticker,close) are
// recognized by their header. Columns are sorted by ticker. When tickers are
// given the panel has exactly those columns; a ticker absent from the file
// gets a column of missing prices.
func ReadPricesFile(fn string, tickers ...string) (*dataframe.DataFrame, error) {
	subLog := log.With().Str("FileName", fn).Logger()

	fh, err := os.Open(fn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not open price file")
		return nil, err
	}
	defer fh.Close()

	df, err := ReadPrices(fh, tickers...)
	if err != nil {
		subLog.Error().Err(err).Msg("could not parse price file")
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	subLog.Debug().Int("NumDays", df.Len()).Int("NumAssets", df.ColCount()).Msg("loaded price file")
	return df, nil
}

// ReadPrices parses a wide or long format price CSV from r; see ReadPricesFile
func ReadPrices(r io.Reader, tickers ...string) (*dataframe.DataFrame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
	}

	for idx := range header {
		header[idx] = strings.TrimSpace(header[idx])
	}

	if isLongHeader(header) {
		observations, err := readLong(reader)
		if err != nil {
			return nil, err
		}
		return Pivot(observations, tickers...), nil
	}

	df, err := readWide(reader, header)
	if err != nil {
		return nil, err
	}

	if err := df.Validate(); err != nil {
		return nil, err
	}

	if len(tickers) > 0 {
		df = restrictColumns(df, tickers)
	}

	return df.SortColumns(), nil
}

// restrictColumns keeps the columns named by tickers, adding a column of NaN
// for any ticker df does not have, so wide files match Pivot's output
func restrictColumns(df *dataframe.DataFrame, tickers []string) *dataframe.DataFrame {
	res := &dataframe.DataFrame{
		Dates:    df.Dates,
		ColNames: make([]string, 0, len(tickers)),
		Vals:     make([][]float64, 0, len(tickers)),
	}

	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		if seen[ticker] {
			continue
		}
		seen[ticker] = true

		col := make([]float64, df.Len())
		if colIdx := df.ColIndex(ticker); colIdx != -1 {
			copy(col, df.Vals[colIdx])
		} else {
			for idx := range col {
				col[idx] = math.NaN()
			}
		}

		res.ColNames = append(res.ColNames, ticker)
		res.Vals = append(res.Vals, col)
	}

	return res
}

func isLongHeader(header []string) bool {
	if len(header) != len(longHeader) {
		return false
	}
	for idx, name := range longHeader {
		if !strings.EqualFold(header[idx], name) {
			return false
		}
	}
	return true
}

func readWide(reader *csv.Reader, header []string) (*dataframe.DataFrame, error) {
	if len(header) < 1 || !strings.EqualFold(header[0], "date") {
		return nil, fmt.Errorf("%w: first column must be date", ErrMalformedCSV)
	}

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, 252),
		ColNames: header[1:],
		Vals:     make([][]float64, len(header)-1),
	}

	for colIdx := range df.Vals {
		df.Vals[colIdx] = make([]float64, 0, 252)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
		}

		dt, err := parseDate(record[0])
		if err != nil {
			return nil, err
		}
		df.Dates = append(df.Dates, dt)

		for colIdx, cell := range record[1:] {
			val, err := parsePrice(cell)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", df.ColNames[colIdx], record[0], err)
			}
			df.Vals[colIdx] = append(df.Vals[colIdx], val)
		}
	}

	return df, nil
}

func readLong(reader *csv.Reader) ([]Observation, error) {
	observations := make([]Observation, 0, 1024)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
		}

		dt, err := parseDate(record[0])
		if err != nil {
			return nil, err
		}

		val, err := parsePrice(record[2])
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", record[1], record[0], err)
		}

		observations = append(observations, Observation{
			Date:   dt,
			Ticker: strings.TrimSpace(record[1]),
			Close:  val,
		})
	}

	return observations, nil
}

func parseDate(val string) (time.Time, error) {
	dt, err := time.Parse(dateLayout, strings.TrimSpace(val))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, val)
	}
	return dt, nil
}

// parsePrice converts a cell to a float; empty cells and NaN mark a missing price
func parsePrice(val string) (float64, error) {
	val = strings.TrimSpace(val)
	if val == "" || strings.EqualFold(val, "nan") {
		return math.NaN(), nil
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("%w: %q", ErrInvalidPrice, val)
	}
	return price, nil
}
