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

package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/penny-vault/pv-risk/common"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dateLayout = "2006-01-02"

var (
	ErrMissingPrices = errors.New("request must contain prices or a begin and end date")
)

// PricePanel is the JSON form of a price panel. Missing prices are null.
type PricePanel struct {
	Dates   []string              `json:"dates"`
	Columns map[string][]*float64 `json:"columns"`
}

type RiskRequest struct {
	Allocation        risk.Allocation `json:"allocation"`
	Prices            *PricePanel     `json:"prices,omitempty"`
	Begin             string          `json:"begin,omitempty"`
	End               string          `json:"end,omitempty"`
	Decay             *float64        `json:"decay,omitempty"`
	InitialCovariance *float64        `json:"initial_covariance,omitempty"`
	Alpha             *float64        `json:"alpha,omitempty"`
	Save              bool            `json:"save,omitempty"`
}

type RiskResponse struct {
	RunID       uuid.UUID    `json:"run_id"`
	Dates       []string     `json:"dates"`
	Assets      []string     `json:"assets"`
	Volatility  []float64    `json:"volatility"`
	ValueAtRisk []float64    `json:"value_at_risk"`
	ClampedDays []int        `json:"clamped_days"`
	Summary     risk.Summary `json:"summary"`
}

// ComputeRisk estimates daily portfolio volatility and VaR for the posted
// allocation. Prices come from the request body or, when only a date range
// is given, from the price database. Responses are cached by request body
// unless the run is saved.
func ComputeRisk(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "handler.ComputeRisk",
		trace.WithAttributes(opentelemetry.SpanAttributesFromFiber(c)...))
	defer span.End()

	body := c.Body()
	req := RiskRequest{}
	if err := json.Unmarshal(body, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		log.Warn().Err(err).Msg("could not parse risk request")
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
	}

	cacheKey := common.CacheKey([]byte("risk"), body, configFingerprint())
	if !req.Save {
		if cached, ok, err := common.CacheGet(ctx, cacheKey); err != nil {
			log.Warn().Err(err).Msg("could not read risk response from cache")
		} else if ok {
			span.SetAttributes(attribute.Bool("CacheHit", true))
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}
	}

	var (
		prices *dataframe.DataFrame
		err    error
	)

	switch {
	case req.Prices != nil:
		prices, err = req.Prices.DataFrame()
	case req.Begin != "" && req.End != "":
		prices, err = loadPrices(ctx, req)
	default:
		err = ErrMissingPrices
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not build price panel")
		return toFiberError(err)
	}

	params := risk.Params{
		Decay:             floatOr(req.Decay, "risk.decay", risk.DefaultDecay),
		InitialCovariance: floatOr(req.InitialCovariance, "risk.initial_covariance", 0),
		Workers:           viper.GetInt("risk.workers"),
	}
	alpha := floatOr(req.Alpha, "risk.alpha", risk.DefaultAlpha)

	res, err := risk.Compute(req.Allocation, prices, data.Returns(prices), params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "risk computation failed")
		return toFiberError(err)
	}

	valueAtRisk, err := risk.ValueAtRisk(res.Volatility, alpha)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "value at risk failed")
		return toFiberError(err)
	}

	if req.Save {
		if err := database.SaveRisk(ctx, res, valueAtRisk); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "could not save risk")
			return fiber.ErrInternalServerError
		}
	}

	encoded, err := json.Marshal(NewRiskResponse(res, valueAtRisk))
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("could not encode risk response")
		return fiber.ErrInternalServerError
	}

	if !req.Save {
		if err := common.CacheSet(ctx, cacheKey, encoded); err != nil {
			log.Warn().Err(err).Msg("could not cache risk response")
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(encoded)
}

// NewRiskResponse formats a computed result and its VaR series
func NewRiskResponse(res *risk.Result, valueAtRisk []float64) RiskResponse {
	dates := make([]string, len(res.Dates))
	for idx, dt := range res.Dates {
		dates[idx] = dt.Format(dateLayout)
	}

	return RiskResponse{
		RunID:       res.RunID,
		Dates:       dates,
		Assets:      res.Assets,
		Volatility:  res.Volatility,
		ValueAtRisk: valueAtRisk,
		ClampedDays: res.ClampedDays,
		Summary:     risk.Summarize(res, valueAtRisk),
	}
}

// DataFrame converts the JSON panel into a date indexed panel with sorted
// columns; null prices become NaN
func (p *PricePanel) DataFrame() (*dataframe.DataFrame, error) {
	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, len(p.Dates)),
		ColNames: make([]string, 0, len(p.Columns)),
		Vals:     make([][]float64, 0, len(p.Columns)),
	}

	for idx, val := range p.Dates {
		dt, err := time.Parse(dateLayout, val)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", data.ErrInvalidDate, val)
		}
		df.Dates[idx] = dt
	}

	for ticker := range p.Columns {
		df.ColNames = append(df.ColNames, ticker)
	}
	sort.Strings(df.ColNames)

	for _, ticker := range df.ColNames {
		raw := p.Columns[ticker]
		col := make([]float64, len(raw))
		for idx, price := range raw {
			if price == nil {
				col[idx] = math.NaN()
			} else {
				col[idx] = *price
			}
		}
		df.Vals = append(df.Vals, col)
	}

	return df, nil
}

func loadPrices(ctx context.Context, req RiskRequest) (*dataframe.DataFrame, error) {
	begin, err := time.Parse(dateLayout, req.Begin)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", data.ErrInvalidDate, req.Begin)
	}

	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", data.ErrInvalidDate, req.End)
	}

	return data.LoadPrices(ctx, req.Allocation.Assets(), begin, end)
}
