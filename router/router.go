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

// Package router wires the pvrisk HTTP API
package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-risk/handler"
	"github.com/penny-vault/pv-risk/middleware"
)

// New creates a fiber app that encodes JSON with go-json, logs every request
// and serves the risk routes. Extra middleware runs after the logger.
func New(middlewares ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "pvrisk",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	app.Use(middleware.NewLogger())
	for _, mw := range middlewares {
		app.Use(mw)
	}

	SetupRoutes(app)
	return app
}

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	api := app.Group("/v1")
	api.Get("/", handler.Ping)

	api.Post("/risk", handler.ComputeRisk)
	api.Post("/var", handler.ValueAtRisk)
}
