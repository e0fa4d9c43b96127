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
	"errors"
	"time"
)

// DataFrame stores a table of values organized by date. Vals is column
// major - e.g.,
//
//	VFINX  PRIDX
//	1      4
//	2      5
//	3      6
//
// Vals[0][1] = 2
// Vals[1][0] = 4
//
// A missing observation is stored as NaN; zero is always a real value.
type DataFrame struct {
	Dates    []time.Time
	ColNames []string
	Vals     [][]float64
}

var (
	ErrDateIndexNotAligned = errors.New("date index does not align")
	ErrDatesNotIncreasing  = errors.New("dates must be strictly increasing")
	ErrRaggedColumns       = errors.New("column length does not match date index")
	ErrColumnNotFound      = errors.New("column not found")
)
