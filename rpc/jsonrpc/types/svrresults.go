// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

import "encoding/json"

// Confirmation status strings reported for queued signing requests.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusExpired   = "expired"
)

// Subscription kind strings accepted by eth_subscribe and reported in
// eth_subscription notifications.
const (
	SubscriptionNewHeads   = "newHeads"
	SubscriptionLogs       = "logs"
	SubscriptionPendingTxs = "newPendingTransactions"
	SubscriptionSyncing    = "syncing"
)

// Block models the data returned by the eth_getBlockByNumber command.
// Transactions holds hex-encoded transaction hashes unless full transaction
// objects were requested, in which case it holds Transaction values.
type Block struct {
	Number       string            `json:"number"`
	Hash         string            `json:"hash"`
	ParentHash   string            `json:"parentHash"`
	Timestamp    string            `json:"timestamp"`
	Miner        string            `json:"miner"`
	Transactions []json.RawMessage `json:"transactions"`
}

// Transaction models a transaction returned by the eth_getTransactionByHash
// command and embedded in verbose block results.  BlockHash and BlockNumber
// are nil for pending transactions.
type Transaction struct {
	Hash        string  `json:"hash"`
	From        string  `json:"from"`
	To          *string `json:"to"`
	Value       string  `json:"value"`
	Nonce       string  `json:"nonce"`
	GasPrice    string  `json:"gasPrice"`
	Input       string  `json:"input"`
	BlockHash   *string `json:"blockHash"`
	BlockNumber *string `json:"blockNumber"`
}

// Log models a single log entry returned by the eth_getLogs command and
// pushed for logs subscriptions.
type Log struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	BlockHash   string   `json:"blockHash"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

// SyncStatus models the data returned by the eth_syncing command when the
// node is catching up.  A node that is fully synced returns false instead.
type SyncStatus struct {
	StartingBlock string `json:"startingBlock"`
	CurrentBlock  string `json:"currentBlock"`
	HighestBlock  string `json:"highestBlock"`
}

// AsyncPendingResult is returned by commands whose side effect was deferred
// to the signer confirmation queue.  The caller retrieves the eventual
// outcome with signer_checkRequest using the returned request id.
type AsyncPendingResult struct {
	Status    string `json:"status"`
	RequestID uint64 `json:"requestId"`
}

// ConfirmationRequest models one entry returned by the
// signer_requestsToConfirm command.
type ConfirmationRequest struct {
	ID        uint64          `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	Status    string          `json:"status"`
	CreatedAt int64           `json:"createdAt"`
	TTL       int64           `json:"ttlSeconds"`
}

// CheckRequestResult models the data returned by the signer_checkRequest
// command.  Result is only present for confirmed requests whose side effect
// completed successfully, Error for ones that failed.
type CheckRequestResult struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

// VersionResult models objects included in the version field of the
// node_version command.
type VersionResult struct {
	VersionString string `json:"versionstring"`
	Major         uint32 `json:"major"`
	Minor         uint32 `json:"minor"`
	Patch         uint32 `json:"patch"`
	Prerelease    string `json:"prerelease"`
	BuildMetadata string `json:"buildmetadata"`
}
