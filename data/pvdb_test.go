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
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-risk/data"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/pgxmockhelper"
)

var _ = Describe("PVDB tests", func() {
	var (
		dbPool  pgxmock.PgxConnIface
		ctx     context.Context
		tickers []string
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		ctx = context.Background()
		tickers = []string{"HASH11", "SOLH11", "ETHE11"}
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	Context("when loading prices", func() {
		It("pivots eod rows into a panel", func() {
			pgxmockhelper.MockDBEodQuery(dbPool, "../testdata/eod.csv", day(2), day(8))

			df, err := data.LoadPrices(ctx, tickers, day(2), day(8))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"ETHE11", "HASH11", "SOLH11"}))
			Expect(df.Dates).To(Equal([]time.Time{day(2), day(3), day(4), day(5), day(8)}))
			Expect(df.Vals[1]).To(Equal([]float64{45.0, 44.1, 45.9, 46.2, 46.0}))

			// a null adj_close and an absent row are both missing
			Expect(math.IsNaN(df.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(df.Vals[2][0])).To(BeTrue())
			Expect(df.Vals[2][2]).To(Equal(12.0))
			Expect(database.NumOpenTransactions()).To(Equal(0))
		})

		It("matches the wide price file", func() {
			pgxmockhelper.MockDBEodQuery(dbPool, "../testdata/eod.csv", day(2), day(8))

			fromDB, err := data.LoadPrices(ctx, tickers, day(2), day(8))
			Expect(err).To(BeNil())
			fromFile, err := data.ReadPricesFile("../testdata/prices_wide.csv")
			Expect(err).To(BeNil())
			Expect(fromDB.Table()).To(Equal(fromFile.Table()))
		})

		It("errors when no prices are available", func() {
			pgxmockhelper.MockDBEodQuery(dbPool, "../testdata/eod.csv", day(20), day(25))

			_, err := data.LoadPrices(ctx, tickers, day(20), day(25))
			Expect(err).To(MatchError(data.ErrNoPrices))
		})

		It("rolls back when the query fails", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT event_date, ticker, adj_close FROM eod").WillReturnError(errors.New("connection reset"))
			dbPool.ExpectRollback()

			_, err := data.LoadPrices(ctx, tickers, day(2), day(8))
			Expect(err).To(MatchError("connection reset"))
			Expect(database.NumOpenTransactions()).To(Equal(0))
		})

		It("rejects an inverted time range", func() {
			_, err := data.LoadPrices(ctx, tickers, day(8), day(2))
			Expect(err).To(MatchError(data.ErrInvalidTimeRange))
		})

		It("rejects an empty ticker list", func() {
			_, err := data.LoadPrices(ctx, []string{}, day(2), day(8))
			Expect(err).To(MatchError(data.ErrEmptyAllocation))
		})
	})
})
