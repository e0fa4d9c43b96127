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
	"math"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/dataframe"
)

var _ = Describe("Price files", func() {
	Context("in the wide format", func() {
		It("reads every column with empty cells as missing", func() {
			df, err := data.ReadPricesFile("../testdata/prices_wide.csv")
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"ETHE11", "HASH11", "SOLH11"}))
			Expect(df.Len()).To(Equal(5))
			Expect(df.Start()).To(Equal(day(2)))
			Expect(df.End()).To(Equal(day(8)))
			Expect(df.Vals[1]).To(Equal([]float64{45.0, 44.1, 45.9, 46.2, 46.0}))
			Expect(math.IsNaN(df.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(df.Vals[2][0])).To(BeTrue())
			Expect(df.Vals[2][4]).To(Equal(12.3))
		})

		It("sorts columns regardless of the header order", func() {
			df, err := data.ReadPrices(strings.NewReader("date,SOLH11,BOVA11,ETHE11\n2024-01-02,12,120,20\n"))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"BOVA11", "ETHE11", "SOLH11"}))
			Expect(df.Vals[0]).To(Equal([]float64{120}))
			Expect(df.Vals[2]).To(Equal([]float64{12}))
		})

		It("restricts the panel to the requested tickers", func() {
			df, err := data.ReadPricesFile("../testdata/prices_wide.csv", "SOLH11", "HASH11", "IVVB11")
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"HASH11", "IVVB11", "SOLH11"}))
			Expect(df.Vals[0]).To(Equal([]float64{45.0, 44.1, 45.9, 46.2, 46.0}))
			for _, val := range df.Vals[1] {
				Expect(math.IsNaN(val)).To(BeTrue())
			}
		})

		It("rejects dates out of order", func() {
			_, err := data.ReadPrices(strings.NewReader("date,HASH11\n2024-01-03,1\n2024-01-02,2\n"))
			Expect(err).To(MatchError(dataframe.ErrDatesNotIncreasing))
		})

		It("rejects a file without a date column", func() {
			_, err := data.ReadPrices(strings.NewReader("day,HASH11\n2024-01-03,1\n"))
			Expect(err).To(MatchError(data.ErrMalformedCSV))
		})

		It("rejects unparsable prices", func() {
			_, err := data.ReadPrices(strings.NewReader("date,HASH11\n2024-01-03,abc\n"))
			Expect(err).To(MatchError(data.ErrInvalidPrice))
		})

		It("rejects unparsable dates", func() {
			_, err := data.ReadPrices(strings.NewReader("date,HASH11\n01/03/2024,1\n"))
			Expect(err).To(MatchError(data.ErrInvalidDate))
		})

		It("rejects rows with the wrong number of cells", func() {
			_, err := data.ReadPrices(strings.NewReader("date,HASH11,ETHE11\n2024-01-03,1\n"))
			Expect(err).To(MatchError(data.ErrMalformedCSV))
		})

		It("rejects an empty file", func() {
			_, err := data.ReadPrices(strings.NewReader(""))
			Expect(err).To(MatchError(data.ErrMalformedCSV))
		})
	})

	Context("in the long format", func() {
		It("pivots the rows into a panel", func() {
			df, err := data.ReadPricesFile("../testdata/prices_long.csv")
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"BOVA11", "ETHE11", "HASH11", "SOLH11"}))
			Expect(df.Dates).To(Equal([]time.Time{day(2), day(3), day(4), day(5), day(8)}))
		})

		It("keeps only the requested tickers", func() {
			df, err := data.ReadPricesFile("../testdata/prices_long.csv", "HASH11", "ETHE11", "SOLH11")
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"ETHE11", "HASH11", "SOLH11"}))
			Expect(math.IsNaN(df.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(df.Vals[2][1])).To(BeTrue())
			Expect(df.Vals[1][2]).To(Equal(45.9))
		})

		It("matches the wide file", func() {
			wide, err := data.ReadPricesFile("../testdata/prices_wide.csv")
			Expect(err).To(BeNil())
			long, err := data.ReadPricesFile("../testdata/prices_long.csv", wide.ColNames...)
			Expect(err).To(BeNil())

			Expect(long.ColNames).To(Equal(wide.ColNames))
			Expect(long.Dates).To(Equal(wide.Dates))
			Expect(long.Table()).To(Equal(wide.Table()))
		})
	})

	It("reports a missing file", func() {
		_, err := data.ReadPricesFile("../testdata/does-not-exist.csv")
		Expect(err).ToNot(BeNil())
	})
})
