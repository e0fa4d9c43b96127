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
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pv-risk/risk"
	"github.com/rs/zerolog/log"
)

// allocationFile is the on-disk layout of an allocation:
//
//	name = "crypto etfs"
//
//	[positions]
//	HASH11 = 1500
//	ETHE11 = -200
type allocationFile struct {
	Name      string           `toml:"name"`
	Positions map[string]int64 `toml:"positions"`
}

// ParseAllocation decodes a TOML allocation document
func ParseAllocation(doc []byte) (risk.Allocation, error) {
	var file allocationFile
	if err := toml.Unmarshal(doc, &file); err != nil {
		return nil, err
	}

	if len(file.Positions) == 0 {
		return nil, ErrEmptyAllocation
	}

	alloc := make(risk.Allocation, len(file.Positions))
	for ticker, qty := range file.Positions {
		alloc[ticker] = qty
	}

	return alloc, nil
}

// LoadAllocation reads a TOML allocation file
func LoadAllocation(fn string) (risk.Allocation, error) {
	subLog := log.With().Str("FileName", fn).Logger()

	doc, err := os.ReadFile(fn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not read allocation file")
		return nil, err
	}

	alloc, err := ParseAllocation(doc)
	if err != nil {
		subLog.Error().Err(err).Msg("could not parse allocation file")
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	subLog.Debug().Int("NumAssets", len(alloc)).Msg("loaded allocation")
	return alloc, nil
}
