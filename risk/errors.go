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

package risk

import "errors"

var (
	ErrInvalidDecay             = errors.New("decay must be in the open interval (0, 1)")
	ErrInvalidInitialCovariance = errors.New("initial covariance must be finite")
	ErrInvalidTailProbability   = errors.New("tail probability must be in the open interval (0, 1)")
	ErrInvalidPrice             = errors.New("prices must be positive and finite")
	ErrInvalidReturn            = errors.New("returns must be finite")
	ErrMissingAsset             = errors.New("allocation references an asset that is not in the panel")
	ErrShapeMismatch            = errors.New("input dimensions do not match")
)
