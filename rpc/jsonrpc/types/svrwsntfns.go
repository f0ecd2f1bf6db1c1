// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// NOTE: This file is intended to house the notifications that are pushed by
// the RPC server over duplex transports.

package types

import (
	"encoding/json"

	"github.com/decred/dcrd/dcrjson/v4"
)

const (
	// SubscriptionNtfnMethod is the method used for subscription event
	// notifications pushed to duplex clients.  The frame is uncorrelated
	// to any request id.
	SubscriptionNtfnMethod Method = "eth_subscription"
)

// DroppedPayload is pushed as the final payload of a subscription that was
// terminated by the server because its consumer could not keep up with the
// event production rate.
type DroppedPayload struct {
	Dropped bool   `json:"dropped"`
	Reason  string `json:"reason"`
}

// SubscriptionNtfn defines the eth_subscription JSON-RPC notification.
type SubscriptionNtfn struct {
	Subscription string
	Kind         string
	Payload      json.RawMessage
}

// NewSubscriptionNtfn returns a new instance which can be used to issue an
// eth_subscription JSON-RPC notification.
func NewSubscriptionNtfn(subscription, kind string, payload json.RawMessage) *SubscriptionNtfn {
	return &SubscriptionNtfn{
		Subscription: subscription,
		Kind:         kind,
		Payload:      payload,
	}
}

func init() {
	// The commands in this file are only usable by websockets and are
	// notifications.
	flags := dcrjson.UFWebsocketOnly | dcrjson.UFNotification

	dcrjson.MustRegister(SubscriptionNtfnMethod, (*SubscriptionNtfn)(nil), flags)
}
