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

package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/database"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return nil
}

func newAddUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "add-user",
		Usage: "create a ledger user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: fCustomer, Usage: "card processor customer id"},
			&cli.StringFlag{Name: "external-id", Usage: "offramp user id"},
			&cli.StringFlag{Name: "timezone", Usage: "IANA zone for the daily tank"},
		},
		Action: func(c *cli.Context) error {
			name, email, tz := c.String("name"), c.String("email"), c.String("timezone")
			if err := validateName(name); err != nil {
				return err
			}
			if err := validateEmail(email); err != nil {
				return err
			}
			if err := validateTimezone(tz); err != nil {
				return err
			}

			return withServices(c, func(ctx context.Context, services *common.Services) error {
				user, err := services.DbService.CreateUser(ctx, database.CreateUserParams{
					Id:         uuid.New().String(),
					ExternalId: c.String("external-id"),
					CustomerId: c.String(fCustomer),
					Name:       name,
					Email:      email,
					Timezone:   tz,
				})
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}

				common.PrintHeader("USER CREATED", common.DefaultWidth)
				fmt.Printf("ID:          %s\n", user.Id)
				fmt.Printf("Name:        %s\n", user.Name)
				fmt.Printf("Email:       %s\n", user.Email)
				fmt.Printf("Customer ID: %s\n", user.CustomerId)
				fmt.Printf("Timezone:    %s\n", user.Timezone)
				common.PrintSeparator("=", common.DefaultWidth)

				zap.L().Info("User created", zap.String("id", user.Id))
				return nil
			})
		},
	}
}

func newUsersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "list users, optionally filtered by customer id",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fCustomer, Aliases: []string{"c"}},
		},
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				users, err := common.InitializeUsers(ctx, services.DbService, c.String(fCustomer))
				if err != nil {
					return err
				}

				common.PrintHeader("USERS", common.WideWidth)
				for i, u := range users {
					fmt.Printf("%s%-36s  %-20s  %-28s  %s\n",
						common.BoxPrefix(i == len(users)-1), u.Id, u.CustomerId, u.Email, u.Timezone)
				}
				common.PrintFooter(fmt.Sprintf("%d users", len(users)), common.WideWidth)
				return nil
			})
		},
	}
}

func newAddAddressCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.StringFlag{Name: fAddress, Required: true},
		&cli.StringFlag{Name: fToken, Value: "USDC"},
		&cli.StringFlag{Name: fChain, Value: "base"},
		&cli.StringFlag{Name: fNetwork, Value: "base-mainnet"},
	)
	return &cli.Command{
		Name:  "add-address",
		Usage: "register a deposit address for a user",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				addr, err := services.DbService.StoreAddress(ctx, database.StoreAddressParams{
					UserId:      userId,
					TokenSymbol: c.String(fToken),
					Chain:       c.String(fChain),
					Network:     c.String(fNetwork),
					Address:     c.String(fAddress),
				})
				if err != nil {
					return fmt.Errorf("failed to store address: %w", err)
				}
				fmt.Printf("✓ %s-%s: %s (user %s)\n", addr.TokenSymbol, addr.Network, addr.Address, addr.UserId)
				return nil
			})
		},
	}
}

func newAddressesCommand() *cli.Command {
	return &cli.Command{
		Name:  "addresses",
		Usage: "report deposit addresses per user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fCustomer, Aliases: []string{"c"}},
		},
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				users, err := common.InitializeUsers(ctx, services.DbService, c.String(fCustomer))
				if err != nil {
					return err
				}

				common.PrintHeader("USER ADDRESS REPORT", common.WideWidth)
				total := 0
				for _, user := range users {
					addresses, err := services.DbService.GetAllUserAddresses(ctx, user.Id)
					if err != nil {
						zap.L().Error("Failed to get addresses", zap.String("user_id", user.Id), zap.Error(err))
						continue
					}
					if len(addresses) == 0 {
						continue
					}
					total += len(addresses)

					fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
					fmt.Printf("│  ID: %s\n", user.Id)
					common.PrintBoxSeparator(common.WideWidth - 2)
					for i, addr := range addresses {
						fmt.Printf("%s %-30s → %s\n",
							common.BoxPrefix(i == len(addresses)-1),
							fmt.Sprintf("%s-%s", addr.TokenSymbol, addr.Network), addr.Address)
					}
				}
				common.PrintFooter(fmt.Sprintf("SUMMARY: %d addresses across %d users", total, len(users)), common.WideWidth)
				return nil
			})
		},
	}
}
