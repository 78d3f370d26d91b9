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

package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"spend-ledger-go/internal/money"

	"github.com/shopspring/decimal"
)

// ErrInvalidPayload is returned when an event lacks a field it cannot be processed without.
var ErrInvalidPayload = errors.New("invalid webhook payload")

const (
	defaultMerchant = "Unknown Merchant"
	defaultChannel  = "card"
	defaultCategory = "general"
)

// Event is the envelope every provider delivers.
type Event struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// DecodeEvent reads an event keeping numbers exact.
func DecodeEvent(r io.Reader) (*Event, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.Data == nil {
		ev.Data = map[string]interface{}{}
	}
	return &ev, nil
}

// Payload is the normalized view of a provider's event data.
type Payload struct {
	CustomerId      string
	AuthorizationId string
	Reference       string
	Merchant        string
	Channel         string
	Category        string
	// Amount is always non-negative; Negative records the sign it arrived with.
	Amount   decimal.Decimal
	Negative bool

	// Deposit fields
	Address         string
	TransactionHash string
	NairaAmount     decimal.Decimal
	Token           string
	Chain           string
	Network         string
}

// ExtractPayload pulls the normalized fields out of the provider shapes we
// accept, substituting defaults for optional metadata.
func ExtractPayload(data map[string]interface{}) (Payload, error) {
	amount, err := lookupAmount(data, "amount", "transaction_amount", "transactionAmount")
	if err != nil {
		return Payload{}, err
	}
	naira, err := lookupAmount(data, "naira_amount", "nairaAmount")
	if err != nil {
		return Payload{}, err
	}

	p := Payload{
		CustomerId:      lookupString(data, "customer_id", "customerId", "customer.id"),
		AuthorizationId: lookupString(data, "authorization_id", "authorizationId", "authorization.id", "id"),
		Reference:       lookupString(data, "reference", "transaction_reference", "transactionReference"),
		Merchant:        lookupString(data, "merchant.name", "merchant_name", "merchantName", "merchant"),
		Channel:         lookupString(data, "channel"),
		Category:        lookupString(data, "category", "merchant.category"),
		Amount:          amount.Abs(),
		Negative:        amount.IsNegative(),

		Address:         lookupString(data, "address", "to_address", "toAddress", "destination.address"),
		TransactionHash: lookupString(data, "hash", "transaction_hash", "transactionHash", "tx_hash"),
		NairaAmount:     naira.Abs(),
		Token:           lookupString(data, "token", "asset", "currency"),
		Chain:           lookupString(data, "chain", "chain_type"),
		Network:         lookupString(data, "network", "blockchain_network"),
	}

	if p.Merchant == "" {
		p.Merchant = defaultMerchant
	}
	if p.Channel == "" {
		p.Channel = defaultChannel
	}
	if p.Category == "" {
		p.Category = defaultCategory
	}
	return p, nil
}

// lookup walks a dotted path through nested objects.
func lookup(data map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// lookupString returns the first non-empty string or number found at paths.
func lookupString(data map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		v, ok := lookup(data, path)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case json.Number:
			return s.String()
		}
	}
	return ""
}

func lookupAmount(data map[string]interface{}, paths ...string) (decimal.Decimal, error) {
	for _, path := range paths {
		v, ok := lookup(data, path)
		if !ok {
			continue
		}
		var raw string
		switch n := v.(type) {
		case json.Number:
			raw = n.String()
		case string:
			raw = n
		case float64:
			return decimal.NewFromFloat(n), nil
		default:
			return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrInvalidPayload, path)
		}
		amount, err := money.Parse(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return amount, nil
	}
	return decimal.Zero, nil
}
