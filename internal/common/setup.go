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

package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"spend-ledger-go/internal/api"
	"spend-ledger-go/internal/database"
	"spend-ledger-go/internal/formance"
	"spend-ledger-go/internal/fundslock"
	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/prime"
	"spend-ledger-go/internal/syncutil"
	"spend-ledger-go/internal/tank"
	"spend-ledger-go/internal/webhook"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is the fully wired ledger. Formance and Prime are nil unless configured.
type Services struct {
	DbService        *database.Service
	Ledger           *ledger.Service
	FundsLocks       *fundslock.Service
	Tanks            *tank.Service
	Processor        *webhook.Processor
	Api              *api.LedgerService
	Formance         *formance.Service
	PrimeService     *prime.Service
	DefaultPortfolio *models.Portfolio
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires every ledger component
// around one shared per-user mutex.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	thresholds, err := LoadThresholds(cfg.Ledger.ThresholdsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService}

	var mirror ledger.Mirror
	var oracle fundslock.BalanceOracle
	if cfg.Formance.StackURL != "" {
		formanceService, err := formance.NewService(ctx, cfg.Formance, dbService)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("failed to initialize formance: %w", err)
		}
		services.Formance = formanceService
		mirror = formanceService
		oracle = formanceService
	} else {
		zap.L().Info("Formance mirror disabled (FORMANCE_STACK_URL not set)")
	}

	locks := &syncutil.ShardedMutex{}
	services.Ledger = ledger.NewService(dbService, locks, cfg.Ledger, mirror)
	services.FundsLocks = fundslock.NewService(dbService, oracle, locks)
	services.Tanks = tank.NewService(dbService, cfg.Ledger, thresholds, tank.LogNotifier{})
	services.Processor = webhook.NewProcessor(dbService, services.Ledger, services.Tanks)
	services.Api = api.NewLedgerService(dbService, services.Tanks, services.FundsLocks)

	if cfg.Listener.Enabled {
		if err := services.initializePrime(ctx); err != nil {
			dbService.Close()
			return nil, err
		}
	}

	return services, nil
}

func (cs *Services) initializePrime(ctx context.Context) error {
	zap.L().Info("Loading Prime API credentials")
	creds, err := loadPrimeCredentials()
	if err != nil {
		return err
	}

	primeService, err := prime.NewService(creds)
	if err != nil {
		return err
	}

	zap.L().Info("Finding default portfolio")
	defaultPortfolio, err := primeService.FindDefaultPortfolio(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("Using default portfolio",
		zap.String("name", defaultPortfolio.Name),
		zap.String("id", defaultPortfolio.Id))

	cs.PrimeService = primeService
	cs.DefaultPortfolio = defaultPortfolio
	return nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations and user administration.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
