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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-risk/data/database"
)

var _ = Describe("TrackedTx", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("is tracked until it commits", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectCommit()

		trx, err := database.Trx(ctx)
		Expect(err).To(BeNil())
		Expect(database.NumOpenTransactions()).To(Equal(1))

		Expect(trx.Commit(ctx)).To(Succeed())
		Expect(database.NumOpenTransactions()).To(Equal(0))
	})

	It("is tracked until it rolls back", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectRollback()

		trx, err := database.Trx(ctx)
		Expect(err).To(BeNil())
		Expect(database.NumOpenTransactions()).To(Equal(1))

		Expect(trx.Rollback(ctx)).To(Succeed())
		Expect(database.NumOpenTransactions()).To(Equal(0))
	})

	It("refuses nested transactions", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectRollback()

		trx, err := database.Trx(ctx)
		Expect(err).To(BeNil())
		defer trx.Rollback(ctx)

		Expect(func() { trx.Begin(ctx) }).To(Panic())
	})
})
