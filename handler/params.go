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
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/dataframe"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// floatOr returns the request value when present, then the configured value,
// then def
func floatOr(val *float64, key string, def float64) float64 {
	if val != nil {
		return *val
	}
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return def
}

// configFingerprint identifies the configured defaults so that cached
// responses are not reused after the configuration changes
func configFingerprint() []byte {
	return []byte(fmt.Sprintf("%v|%v|%v",
		floatOr(nil, "risk.decay", risk.DefaultDecay),
		floatOr(nil, "risk.initial_covariance", 0),
		floatOr(nil, "risk.alpha", risk.DefaultAlpha)))
}

var badRequestErrors = []error{
	ErrMissingPrices,
	risk.ErrInvalidDecay,
	risk.ErrInvalidInitialCovariance,
	risk.ErrInvalidTailProbability,
	risk.ErrInvalidPrice,
	risk.ErrInvalidReturn,
	risk.ErrMissingAsset,
	risk.ErrShapeMismatch,
	dataframe.ErrDateIndexNotAligned,
	dataframe.ErrDatesNotIncreasing,
	dataframe.ErrRaggedColumns,
	data.ErrInvalidDate,
	data.ErrInvalidTimeRange,
	data.ErrEmptyAllocation,
}

// toFiberError maps configuration and shape errors to 400 and a missing
// price history to 404; anything else is an internal error
func toFiberError(err error) error {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			log.Warn().Err(err).Msg("rejecting risk request")
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	if errors.Is(err, data.ErrNoPrices) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	log.Error().Stack().Err(err).Msg("risk request failed")
	return fiber.ErrInternalServerError
}
