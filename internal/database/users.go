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

type CreateUserParams struct {
	Id         string
	ExternalId string
	CustomerId string
	Name       string
	Email      string
	Timezone   string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.Id, &user.ExternalId, &user.CustomerId, &user.Name, &user.Email,
		&user.Timezone, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func getUser(ctx context.Context, q querier, query, key string) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))
	return getUser(ctx, s.db, queryGetUserById, userId)
}

func (s *Service) FindUserByExternalId(ctx context.Context, externalId string) (*models.User, error) {
	zap.L().Debug("Querying user by external ID", zap.String("external_id", externalId))
	return getUser(ctx, s.db, queryGetUserByExternalId, externalId)
}

func (s *Service) FindUserByCustomerId(ctx context.Context, customerId string) (*models.User, error) {
	zap.L().Debug("Querying user by customer ID", zap.String("customer_id", customerId))
	return getUser(ctx, s.db, queryGetUserByCustomerId, customerId)
}

func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	if params.Id == "" {
		params.Id = uuid.New().String()
	}
	if params.Name == "" || params.Email == "" {
		return nil, fmt.Errorf("user name and email are required")
	}

	zap.L().Info("Creating user",
		zap.String("id", params.Id),
		zap.String("name", params.Name),
		zap.String("customer_id", params.CustomerId))

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, queryInsertUser, params.Id, params.ExternalId, params.CustomerId,
		params.Name, params.Email, params.Timezone, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user with email %s or same customer/external id already exists", params.Email)
		}
		zap.L().Error("Failed to insert user", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	zap.L().Info("User created successfully", zap.String("id", params.Id), zap.String("name", params.Name))
	return s.GetUserById(ctx, params.Id)
}

func (t *sqlTx) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserById, userId)
}
