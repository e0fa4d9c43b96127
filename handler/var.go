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
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-risk/observability/opentelemetry"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type VaRRequest struct {
	Volatility []float64 `json:"volatility"`
	Alpha      *float64  `json:"alpha,omitempty"`
}

type VaRResponse struct {
	Alpha       float64   `json:"alpha"`
	ZScore      float64   `json:"z_score"`
	ValueAtRisk []float64 `json:"value_at_risk"`
}

// ValueAtRisk converts a posted volatility series into two-sided VaR
func ValueAtRisk(c *fiber.Ctx) error {
	_, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "handler.ValueAtRisk",
		trace.WithAttributes(opentelemetry.SpanAttributesFromFiber(c)...))
	defer span.End()

	req := VaRRequest{}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		log.Warn().Err(err).Msg("could not parse var request")
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
	}

	alpha := floatOr(req.Alpha, "risk.alpha", risk.DefaultAlpha)
	z, err := risk.ZScore(alpha)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid tail probability")
		return toFiberError(err)
	}

	valueAtRisk, err := risk.ValueAtRisk(req.Volatility, alpha)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "value at risk failed")
		return toFiberError(err)
	}

	return c.JSON(VaRResponse{
		Alpha:       alpha,
		ZScore:      z,
		ValueAtRisk: valueAtRisk,
	})
}
