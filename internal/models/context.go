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

package models

import (
	"context"
	"time"
)

type eventContextKey struct{}

// EventContext carries delivery metadata for the event being processed so
// that downstream writers (mirror ledger, logs) can record it without
// widening every method signature.
type EventContext struct {
	Event      string    // e.g. "authorization.request"
	DeliveryId string    // transport request id
	Source     string    // "webhook" or "prime-listener"
	ReceivedAt time.Time // when the event entered the processor
}

// WithEventContext attaches event delivery data to a context.
func WithEventContext(ctx context.Context, ec *EventContext) context.Context {
	return context.WithValue(ctx, eventContextKey{}, ec)
}

// GetEventContext retrieves event delivery data from context, or nil if absent.
func GetEventContext(ctx context.Context) *EventContext {
	ec, _ := ctx.Value(eventContextKey{}).(*EventContext)
	return ec
}
