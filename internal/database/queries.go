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

const (
	// User queries
	userColumns = `id, external_id, customer_id, name, email, timezone, created_at, updated_at`

	queryGetActiveUsers = `
		SELECT ` + userColumns + `
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT INTO users (id, external_id, customer_id, name, email, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByExternalId = `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_id = ? AND external_id <> '' AND active = 1`

	queryGetUserByCustomerId = `
		SELECT ` + userColumns + `
		FROM users
		WHERE customer_id = ? AND customer_id <> '' AND active = 1`

	// Address queries
	queryInsertAddress = `
		INSERT INTO addresses (id, user_id, token_symbol, chain, network, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetAllUserAddresses = `
		SELECT id, user_id, token_symbol, chain, network, address, created_at
		FROM addresses
		WHERE user_id = ?
		ORDER BY token_symbol, created_at DESC`

	queryFindUserByAddress = `
		SELECT u.id, u.external_id, u.customer_id, u.name, u.email, u.timezone, u.created_at, u.updated_at,
		       a.id, a.user_id, a.token_symbol, a.chain, a.network, a.address, a.created_at
		FROM users u
		JOIN addresses a ON u.id = a.user_id
		WHERE a.address = ? COLLATE NOCASE AND u.active = 1
		LIMIT 1`

	// Spending limit queries
	spendingLimitColumns = `id, user_id, order_id, usd_amount, fx_rate, naira_amount, naira_remaining,
		chain_type, token_symbol, blockchain_network, created_at`

	// FIFO: oldest first, insertion order breaks ties.
	queryListUsableSpendingLimits = `
		SELECT ` + spendingLimitColumns + `
		FROM spending_limits
		WHERE user_id = ? AND CAST(naira_remaining AS REAL) > 0
		ORDER BY created_at ASC, rowid ASC`

	queryListSpendingLimits = `
		SELECT ` + spendingLimitColumns + `
		FROM spending_limits
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC`

	queryGetSpendingLimitByOrder = `
		SELECT ` + spendingLimitColumns + `
		FROM spending_limits
		WHERE order_id = ?`

	queryInsertSpendingLimit = `
		INSERT INTO spending_limits (
			id, user_id, order_id, usd_amount, fx_rate, naira_amount, naira_remaining,
			chain_type, token_symbol, blockchain_network, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateSpendingLimitRemaining = `
		UPDATE spending_limits
		SET naira_remaining = ?
		WHERE id = ? AND naira_remaining = ?`

	// Transaction queries
	transactionColumns = `id, user_id, naira_amount, usd_amount, effective_fx_rate, type, status,
		authorization_id, transaction_reference, merchant_name, channel, category, token_info,
		recipient_address, to_address, transaction_hash, created_at, updated_at`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, naira_amount, usd_amount, effective_fx_rate, type, status,
			authorization_id, transaction_reference, merchant_name, channel, category, token_info,
			recipient_address, to_address, transaction_hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionByAuthorization = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND authorization_id = ? AND type = 'spending'`

	queryGetTransactionByReference = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND type = ? AND transaction_reference = ?`

	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = ?, updated_at = ?
		WHERE id = ?`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Chunk queries
	queryInsertTransactionChunk = `
		INSERT INTO transaction_chunks (id, transaction_id, spending_limit_id, naira_used, usd_equivalent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionChunks = `
		SELECT id, transaction_id, spending_limit_id, naira_used, usd_equivalent, created_at
		FROM transaction_chunks
		WHERE transaction_id = ?
		ORDER BY rowid`

	// Funds lock queries
	fundsLockColumns = `id, user_id, sub_user_id, amount_locked, token_symbol_locked, chain,
		blockchain_network, type, status, created_at, updated_at`

	queryInsertFundsLock = `
		INSERT INTO funds_locks (
			id, user_id, sub_user_id, amount_locked, token_symbol_locked, chain,
			blockchain_network, type, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetFundsLock = `
		SELECT ` + fundsLockColumns + `
		FROM funds_locks
		WHERE id = ?`

	queryGetActiveFundsLock = `
		SELECT ` + fundsLockColumns + `
		FROM funds_locks
		WHERE user_id = ? AND sub_user_id = ? AND type = ? AND status = 'LOCKED'`

	queryListFundsLocks = `
		SELECT ` + fundsLockColumns + `
		FROM funds_locks
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC`

	queryListFundsLocksByStatus = `
		SELECT ` + fundsLockColumns + `
		FROM funds_locks
		WHERE user_id = ? AND status = ?
		ORDER BY created_at ASC, rowid ASC`

	queryListLockedAmounts = `
		SELECT amount_locked
		FROM funds_locks
		WHERE user_id = ? AND token_symbol_locked = ? AND chain = ? AND blockchain_network = ? AND status = 'LOCKED'`

	queryUpdateFundsLockStatus = `
		UPDATE funds_locks
		SET status = ?, updated_at = ?
		WHERE id = ?`
)
