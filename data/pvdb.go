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
	"context"
	"math"
	"time"

	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const eodSQL = "SELECT event_date, ticker, adj_close FROM eod WHERE ticker = ANY($1) AND event_date BETWEEN $2 AND $3 ORDER BY event_date, ticker"

// LoadPrices fetches adjusted closing prices for tickers between begin and
// end (inclusive) from the eod table and pivots them into a panel with one
// column per ticker. Tickers without any row still get an all-NaN column.
func LoadPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.LoadPrices")
	defer span.End()

	span.SetAttributes(
		attribute.StringSlice("Tickers", tickers),
		attribute.String("Begin", begin.Format(dateLayout)),
		attribute.String("End", end.Format(dateLayout)),
	)

	subLog := log.With().Strs("Tickers", tickers).Time("Begin", begin).Time("End", end).Logger()
	subLog.Debug().Msg("loading eod prices")

	if end.Before(begin) {
		subLog.Warn().Msg("end before begin in call to LoadPrices")
		return nil, ErrInvalidTimeRange
	}

	if len(tickers) == 0 {
		return nil, ErrEmptyAllocation
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod prices -- could not get a database transaction"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return nil, err
	}

	rows, err := trx.Query(ctx, eodSQL, tickers, begin, end)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod prices -- db query failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Str("SQL", eodSQL).Msg(msg)
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	observations := make([]Observation, 0, 252*len(tickers))
	for rows.Next() {
		var (
			eventDate time.Time
			ticker    string
			adjClose  *float64
		)

		if err := rows.Scan(&eventDate, &ticker, &adjClose); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- db query scan failed")
			rows.Close()
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		price := math.NaN()
		if adjClose != nil {
			price = *adjClose
		}

		observations = append(observations, Observation{
			Date:   eventDate,
			Ticker: ticker,
			Close:  price,
		})
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read eod rows")
		subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- reading rows failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("error committing transaction")
	}

	if len(observations) == 0 {
		span.SetStatus(codes.Error, "no prices found")
		subLog.Warn().Msg("no eod prices in requested range")
		return nil, ErrNoPrices
	}

	df := Pivot(observations, tickers...)
	subLog.Debug().Int("NumDays", df.Len()).Int("NumRows", len(observations)).Msg("loaded eod prices")

	return df, nil
}
