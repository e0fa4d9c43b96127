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

package data_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/risk"
)

var _ = Describe("Allocations", func() {
	It("loads positions from a toml file", func() {
		alloc, err := data.LoadAllocation("../testdata/allocation.toml")
		Expect(err).To(BeNil())
		Expect(alloc).To(Equal(risk.Allocation{
			"HASH11": 1500,
			"ETHE11": -200,
			"SOLH11": 800,
		}))
		Expect(alloc.Assets()).To(Equal([]string{"ETHE11", "HASH11", "SOLH11"}))
	})

	It("rejects an allocation without positions", func() {
		_, err := data.ParseAllocation([]byte(`name = "empty"`))
		Expect(err).To(MatchError(data.ErrEmptyAllocation))
	})

	It("rejects fractional positions", func() {
		_, err := data.ParseAllocation([]byte("[positions]\nHASH11 = 1.5\n"))
		Expect(err).ToNot(BeNil())
	})

	It("rejects invalid toml", func() {
		_, err := data.ParseAllocation([]byte("[positions\n"))
		Expect(err).ToNot(BeNil())
	})

	It("reports a missing file", func() {
		_, err := data.LoadAllocation("../testdata/does-not-exist.toml")
		Expect(err).ToNot(BeNil())
	})
})
