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

package database_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-risk/data/database"
	"github.com/penny-vault/pv-risk/pgxmockhelper"
	"github.com/penny-vault/pv-risk/risk"
)

var _ = Describe("SaveRisk", func() {
	var (
		dbPool pgxmock.PgxConnIface
		ctx    context.Context
		res    *risk.Result
		vaR    []float64
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		ctx = context.Background()

		res = &risk.Result{
			RunID: uuid.New(),
			Dates: []time.Time{
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			},
			Assets:      []string{"ETHE11", "HASH11"},
			Volatility:  []float64{0, 1.5, 2},
			ClampedDays: []int{},
		}

		vaR, err = risk.ValueAtRisk(res.Volatility, 0.05)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("writes the run and one row per day in a transaction", func() {
		pgxmockhelper.MockDBSaveRisk(dbPool, 3)

		err := database.SaveRisk(ctx, res, vaR)
		Expect(err).To(BeNil())
		Expect(database.NumOpenTransactions()).To(Equal(0))
	})

	It("rolls back when a row fails", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO risk_run").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectExec("INSERT INTO portfolio_risk").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectExec("INSERT INTO portfolio_risk").WillReturnError(errors.New("duplicate key"))
		dbPool.ExpectRollback()

		err := database.SaveRisk(ctx, res, vaR)
		Expect(err).To(MatchError("duplicate key"))
		Expect(database.NumOpenTransactions()).To(Equal(0))
	})

	It("rejects a VaR series that does not match", func() {
		err := database.SaveRisk(ctx, res, vaR[:2])
		Expect(err).To(MatchError(risk.ErrShapeMismatch))
	})

	It("fails without a pool", func() {
		database.SetPool(nil)
		err := database.SaveRisk(ctx, res, vaR)
		Expect(err).To(MatchError(database.ErrNotConnected))
	})
})
