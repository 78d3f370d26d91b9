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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StoreAddressParams struct {
	UserId      string
	TokenSymbol string
	Chain       string
	Network     string
	Address     string
}

func (s *Service) StoreAddress(ctx context.Context, params StoreAddressParams) (*models.Address, error) {
	zap.L().Info("Storing address",
		zap.String("user_id", params.UserId),
		zap.String("token_symbol", params.TokenSymbol),
		zap.String("network", params.Network),
		zap.String("address", params.Address))

	addr := &models.Address{
		Id:          uuid.New().String(),
		UserId:      params.UserId,
		TokenSymbol: params.TokenSymbol,
		Chain:       params.Chain,
		Network:     params.Network,
		Address:     params.Address,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, queryInsertAddress, addr.Id, addr.UserId, addr.TokenSymbol,
		addr.Chain, addr.Network, addr.Address, addr.CreatedAt)
	if err != nil {
		zap.L().Error("Failed to insert address",
			zap.String("user_id", params.UserId),
			zap.String("token_symbol", params.TokenSymbol),
			zap.Error(err))
		return nil, fmt.Errorf("unable to insert address: %w", err)
	}

	zap.L().Info("Address stored successfully", zap.String("id", addr.Id))
	return addr, nil
}

func (s *Service) GetAllUserAddresses(ctx context.Context, userId string) ([]models.Address, error) {
	zap.L().Debug("Querying all addresses for user", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetAllUserAddresses, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query all addresses: %w", err)
	}
	defer closeRows(rows)

	var addresses []models.Address
	for rows.Next() {
		var addr models.Address
		err := rows.Scan(&addr.Id, &addr.UserId, &addr.TokenSymbol, &addr.Chain, &addr.Network, &addr.Address, &addr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan address row: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating address rows: %w", err)
	}

	zap.L().Debug("Retrieved all addresses", zap.String("user_id", userId), zap.Int("count", len(addresses)))
	return addresses, nil
}

// FindUserByAddress matches deposit addresses case-insensitively.
func (s *Service) FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error) {
	zap.L().Debug("Finding user by address", zap.String("address", address))

	var user models.User
	var addr models.Address
	err := s.db.QueryRowContext(ctx, queryFindUserByAddress, address).Scan(
		&user.Id, &user.ExternalId, &user.CustomerId, &user.Name, &user.Email, &user.Timezone, &user.CreatedAt, &user.UpdatedAt,
		&addr.Id, &addr.UserId, &addr.TokenSymbol, &addr.Chain, &addr.Network, &addr.Address, &addr.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		zap.L().Debug("No user found for address", zap.String("address", address))
		return nil, nil, store.ErrUserNotFound
	}
	if err != nil {
		zap.L().Error("Failed to query user by address", zap.String("address", address), zap.Error(err))
		return nil, nil, fmt.Errorf("unable to query user by address: %w", err)
	}

	zap.L().Debug("Found user by address",
		zap.String("address", address),
		zap.String("user_id", user.Id),
		zap.String("user_name", user.Name))
	return &user, &addr, nil
}
