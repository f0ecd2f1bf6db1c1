// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// Errors returned by the collaborator backends that the RPC server gives
// dedicated treatment to.  Backends are expected to wrap or return these
// sentinels directly.
var (
	// ErrBlockNotFound indicates the requested block is not known to the
	// chain engine.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTxNotFound indicates the requested transaction is not known to
	// the chain engine or the transaction pool.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrAccountNotFound indicates the account manager holds no key for
	// the given address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountLocked indicates a signing operation could not complete
	// synchronously because the key is locked or held by a hardware
	// device.  The dispatcher reroutes such operations through the
	// confirmation queue.
	ErrAccountLocked = errors.New("account locked")

	// ErrEngineUnavailable indicates the collaborator backend is down or
	// unreachable.  It is surfaced to clients as the EngineUnavailable
	// RPC error code.
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// Chain provides the RPC server with the chain state queries served by the
// read-only eth_* methods.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type Chain interface {
	// ChainID returns the identifier of the chain the engine executes.
	ChainID() uint64

	// BestBlockNumber returns the number of the current best block.
	BestBlockNumber() (uint64, error)

	// BlockByNumber returns the block at the given height with
	// hex-encoded transaction hashes populated.
	//
	// ErrBlockNotFound is returned for heights past the best block.
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)

	// BalanceAt returns the balance of the account at the given block
	// height in the chain's smallest unit.
	BalanceAt(ctx context.Context, address string, number uint64) (*big.Int, error)

	// NonceAt returns the number of transactions sent from the account
	// as of the given block height.
	NonceAt(ctx context.Context, address string, number uint64) (uint64, error)

	// TransactionByHash returns the transaction with the given hash from
	// either the chain or the pending pool.
	//
	// ErrTxNotFound is returned for unknown hashes.
	TransactionByHash(ctx context.Context, hash string) (*types.Transaction, error)

	// Logs returns all logs in the inclusive block range matching the
	// provided filter.
	Logs(ctx context.Context, from, to uint64, filter *types.LogFilterArgs) ([]types.Log, error)

	// SyncStatus returns the current sync progress or nil when the
	// engine is fully synced.
	SyncStatus() *types.SyncStatus

	// GasPrice returns the engine's suggested gas price.
	GasPrice(ctx context.Context) (*big.Int, error)
}

// TxPool provides the RPC server with the transaction submission path used
// by eth_sendRawTransaction and by confirmed signing requests.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type TxPool interface {
	// SubmitTransaction injects a signed, hex-encoded transaction into
	// the pool and returns its hash.
	SubmitTransaction(ctx context.Context, signedTx string) (string, error)
}

// AccountManager provides the RPC server with the key-store operations
// behind the personal_* methods and the signing capability invoked directly
// or by confirmation execution.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type AccountManager interface {
	// Accounts returns the addresses of all managed keys.
	Accounts() []string

	// HasAccount returns whether a key is managed for the address.
	HasAccount(address string) bool

	// NewAccount generates a new key protected by the passphrase and
	// returns its address.
	NewAccount(passphrase string) (string, error)

	// Unlock decrypts the key for the address for the given duration.
	Unlock(address, passphrase string, timeout time.Duration) error

	// Lock drops the decrypted key for the address.
	Lock(address string) error

	// SignTransaction signs the described transaction and returns the
	// serialized signed transaction along with its hash.
	//
	// ErrAccountLocked is returned when the key is locked, in which case
	// the caller must route the request through the confirmation queue.
	SignTransaction(ctx context.Context, tx *types.TransactionArgs) (signedTx string, txHash string, err error)

	// SignData signs arbitrary hex-encoded data with the key for the
	// address and returns the hex-encoded signature.
	//
	// ErrAccountLocked is returned when the key is locked.
	SignData(ctx context.Context, address, data string) (string, error)
}

// NetManager provides the RPC server with a means to query the state of the
// peer-to-peer layer for the net_* methods.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type NetManager interface {
	// PeerCount returns the number of currently connected peers.
	PeerCount() int

	// Listening returns whether the node is accepting inbound peer
	// connections.
	Listening() bool
}
