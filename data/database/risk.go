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

package database

import (
	"context"
	"fmt"
	"math"

	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	insertRunSQL = `INSERT INTO risk_run (run_id, assets, num_days, num_clamped) VALUES ($1, $2, $3, $4)`
	insertDaySQL = `INSERT INTO portfolio_risk (run_id, event_date, volatility, value_at_risk) VALUES ($1, $2, $3, $4)`
)

// SaveRisk writes the volatility and VaR series of res in a single
// transaction. valueAtRisk must be aligned with res.Volatility; a NaN VaR is
// stored as NULL.
func SaveRisk(ctx context.Context, res *risk.Result, valueAtRisk []float64) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "database.SaveRisk")
	defer span.End()

	span.SetAttributes(
		attribute.String("RunID", res.RunID.String()),
		attribute.Int("NumDays", len(res.Volatility)),
	)

	subLog := log.With().Str("RunID", res.RunID.String()).Int("NumDays", len(res.Volatility)).Logger()

	if len(valueAtRisk) != len(res.Volatility) {
		err := fmt.Errorf("%w: %d VaR values for %d days", risk.ErrShapeMismatch, len(valueAtRisk), len(res.Volatility))
		span.RecordError(err)
		span.SetStatus(codes.Error, "var series does not match volatility series")
		return err
	}

	trx, err := Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get a database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get a database transaction")
		return err
	}

	if _, err := trx.Exec(ctx, insertRunSQL, res.RunID, res.Assets, len(res.Volatility), len(res.ClampedDays)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not save risk run")
		subLog.Error().Stack().Err(err).Str("Query", insertRunSQL).Msg("could not save risk run")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	for day, vol := range res.Volatility {
		var varVal *float64
		if v := valueAtRisk[day]; !math.IsNaN(v) {
			varVal = &v
		}

		if _, err := trx.Exec(ctx, insertDaySQL, res.RunID, res.Dates[day], vol, varVal); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "could not save portfolio risk")
			subLog.Error().Stack().Err(err).Time("EventDate", res.Dates[day]).Str("Query", insertDaySQL).Msg("could not save portfolio risk")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not commit transaction")
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	subLog.Info().Msg("saved portfolio risk")
	return nil
}
