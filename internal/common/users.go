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

	"spend-ledger-go/internal/models"

	"go.uber.org/zap"
)

// UserDirectory lists and resolves users for command-line utilities.
type UserDirectory interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	FindUserByCustomerId(ctx context.Context, customerId string) (*models.User, error)
}

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id         string
	CustomerId string
	Name       string
	Email      string
	Timezone   string
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{
		Id:         u.Id,
		CustomerId: u.CustomerId,
		Name:       u.Name,
		Email:      u.Email,
		Timezone:   u.Timezone,
	}
}

// InitializeUsers retrieves users based on an optional card-processor customer id.
// If customerFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, dir UserDirectory, customerFilter string) ([]UserInfo, error) {
	var users []UserInfo

	if customerFilter != "" {
		zap.L().Info("Looking up user by customer id", zap.String("customer_id", customerFilter))
		user, err := dir.FindUserByCustomerId(ctx, customerFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		users = append(users, toUserInfo(*user))
	} else {
		allUsers, err := dir.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			users = append(users, toUserInfo(u))
		}
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
