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

package cmd

import (
	"fmt"
	"os"

	"github.com/penny-vault/pv-risk/common"
	"github.com/penny-vault/pv-risk/risk"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	cobra.OnInitialize(common.SetupLogging)

	// Risk model
	viper.BindEnv("risk.decay", "PVRISK_DECAY")
	rootCmd.PersistentFlags().Float64("decay", risk.DefaultDecay, "EWMA decay factor in (0, 1)")
	viper.BindPFlag("risk.decay", rootCmd.PersistentFlags().Lookup("decay"))

	viper.BindEnv("risk.initial_covariance", "PVRISK_INITIAL_COVARIANCE")
	rootCmd.PersistentFlags().Float64("initial-covariance", 0, "covariance of every asset pair on the first day")
	viper.BindPFlag("risk.initial_covariance", rootCmd.PersistentFlags().Lookup("initial-covariance"))

	viper.BindEnv("risk.alpha", "PVRISK_ALPHA")
	rootCmd.PersistentFlags().Float64("alpha", risk.DefaultAlpha, "two-sided VaR tail probability in (0, 1)")
	viper.BindPFlag("risk.alpha", rootCmd.PersistentFlags().Lookup("alpha"))

	viper.BindEnv("risk.workers", "PVRISK_WORKERS")
	rootCmd.PersistentFlags().Int("workers", 0, "number of goroutines aggregating days; 0 uses GOMAXPROCS")
	viper.BindPFlag("risk.workers", rootCmd.PersistentFlags().Lookup("workers"))

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Cache
	viper.BindEnv("cache.local_size", "PVRISK_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 128, "number of responses kept in the local LRU cache; 0 disables it")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.redis", "PVRISK_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "share cached responses through redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	viper.BindEnv("cache.ttl", "PVRISK_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 3600, "seconds a cached response lives in redis")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	// Logging configuration
	viper.BindEnv("log.level", "PVRISK_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVRISK_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVRISK_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVRISK_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format logs for humans instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector endpoint; tracing is off when blank")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP(s) instead of gRPC to reach the collector")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))
}

var rootCmd = &cobra.Command{
	Use:     "pvrisk",
	Version: common.CurrentVersion.String(),
	Short:   "Daily portfolio volatility and Value-at-Risk",
	Long: `pvrisk estimates an exponentially weighted covariance of asset returns,
aggregates it into a daily portfolio volatility for an allocation and converts
the volatility into a two-sided Value-at-Risk.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
