/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"spend-ledger-go/internal/models"
)

// durationSetting binds one duration env var to its destination.
type durationSetting struct {
	key          string
	defaultValue time.Duration
	dest         *time.Duration
}

func Load() (*models.Config, error) {
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "spend_ledger.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Server: models.ServerConfig{
			Addr:          getEnvString("SERVER_ADDR", ":8080"),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		},
		Ledger: models.LedgerConfig{
			DefaultTimezone: getEnvString("DEFAULT_TIMEZONE", "Africa/Lagos"),
			ThresholdsFile:  os.Getenv("THRESHOLDS_FILE"),
			DefaultNetwork:  getEnvString("DEFAULT_NETWORK", "base-mainnet"),
		},
		Listener: models.ListenerConfig{
			Enabled:    getEnvBool("LISTENER_ENABLED", false),
			AssetsFile: os.Getenv("ASSETS_FILE"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "spend-ledger"),
		},
	}

	settings := []durationSetting{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &cfg.Database.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &cfg.Database.PingTimeout},
		{"DB_BUSY_TIMEOUT", 5 * time.Second, &cfg.Database.BusyTimeout},
		{"SERVER_READ_TIMEOUT", 10 * time.Second, &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", 15 * time.Second, &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.Server.ShutdownTimeout},
		{"LISTENER_LOOKBACK_WINDOW", 6 * time.Hour, &cfg.Listener.LookbackWindow},
		{"LISTENER_POLLING_INTERVAL", 30 * time.Second, &cfg.Listener.PollingInterval},
		{"LISTENER_CLEANUP_INTERVAL", 15 * time.Minute, &cfg.Listener.CleanupInterval},
	}
	for _, s := range settings {
		value, err := getEnvDuration(s.key, s.defaultValue)
		if err != nil {
			return nil, err
		}
		*s.dest = value
	}

	if _, err := time.LoadLocation(cfg.Ledger.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", cfg.Ledger.DefaultTimezone, err)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
