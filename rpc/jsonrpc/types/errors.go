// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

import (
	"github.com/decred/dcrd/dcrjson/v4"
)

// Error codes specific to the parity RPC server that extend the standard
// JSON-RPC 2.0 codes provided by dcrjson.  The standard structural codes
// (parse error, invalid request, method not found, invalid params, internal
// error) are used directly from dcrjson.
const (
	// ErrRPCUnauthorized indicates the session's granted capability set
	// does not include the tag required by the requested method.
	ErrRPCUnauthorized dcrjson.RPCErrorCode = -32040

	// ErrRPCUnsupportedOnTransport indicates the requested method needs a
	// duplex transport and was invoked over plain HTTP.
	ErrRPCUnsupportedOnTransport dcrjson.RPCErrorCode = -32041

	// ErrRPCTimeout indicates a handler invocation exceeded the
	// per-call timeout enforced at the dispatch boundary.
	ErrRPCTimeout dcrjson.RPCErrorCode = -32042

	// ErrRPCAlreadyResolved indicates a confirm or reject raced with
	// another resolution of the same queued signing request and lost.
	ErrRPCAlreadyResolved dcrjson.RPCErrorCode = -32043

	// ErrRPCExpired indicates a queued signing request passed its TTL
	// before any confirming actor resolved it.
	ErrRPCExpired dcrjson.RPCErrorCode = -32044

	// ErrRPCEngineUnavailable indicates a collaborator backend such as
	// the chain engine or the transaction pool is unreachable.
	ErrRPCEngineUnavailable dcrjson.RPCErrorCode = -32045

	// ErrRPCRequestNotFound indicates no queued signing request exists
	// for the given request id.
	ErrRPCRequestNotFound dcrjson.RPCErrorCode = -32046

	// ErrRPCAccountLocked indicates a signing operation failed because
	// the key is locked and no confirmation path was available.
	ErrRPCAccountLocked dcrjson.RPCErrorCode = -32047
)
