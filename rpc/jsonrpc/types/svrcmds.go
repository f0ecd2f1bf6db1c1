// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// NOTE: This file is intended to house the JSON-RPC commands that are
// supported by the RPC server.

package types

import (
	"github.com/decred/dcrd/dcrjson/v4"
)

// TransactionArgs models the object parameter of the eth_sendTransaction
// command and the modified-parameter payload of signer_confirmRequest.  All
// quantity fields are hex-encoded with a 0x prefix.
type TransactionArgs struct {
	From     string  `json:"from"`
	To       *string `json:"to,omitempty"`
	Gas      *string `json:"gas,omitempty"`
	GasPrice *string `json:"gasPrice,omitempty"`
	Value    *string `json:"value,omitempty"`
	Data     *string `json:"data,omitempty"`
	Nonce    *string `json:"nonce,omitempty"`
}

// LogFilterArgs models the object parameter of the eth_getLogs command and
// the optional filter parameter of eth_subscribe for the logs kind.  An empty
// field matches everything.
type LogFilterArgs struct {
	FromBlock *string  `json:"fromBlock,omitempty"`
	ToBlock   *string  `json:"toBlock,omitempty"`
	Addresses []string `json:"address,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// ClientVersionCmd defines the web3_clientVersion JSON-RPC command.
type ClientVersionCmd struct{}

// NewClientVersionCmd returns a new instance which can be used to issue a
// web3_clientVersion JSON-RPC command.
func NewClientVersionCmd() *ClientVersionCmd {
	return &ClientVersionCmd{}
}

// NetVersionCmd defines the net_version JSON-RPC command.
type NetVersionCmd struct{}

// NewNetVersionCmd returns a new instance which can be used to issue a
// net_version JSON-RPC command.
func NewNetVersionCmd() *NetVersionCmd {
	return &NetVersionCmd{}
}

// PeerCountCmd defines the net_peerCount JSON-RPC command.
type PeerCountCmd struct{}

// NewPeerCountCmd returns a new instance which can be used to issue a
// net_peerCount JSON-RPC command.
func NewPeerCountCmd() *PeerCountCmd {
	return &PeerCountCmd{}
}

// NetListeningCmd defines the net_listening JSON-RPC command.
type NetListeningCmd struct{}

// NewNetListeningCmd returns a new instance which can be used to issue a
// net_listening JSON-RPC command.
func NewNetListeningCmd() *NetListeningCmd {
	return &NetListeningCmd{}
}

// ModulesCmd defines the rpc_modules JSON-RPC command.
type ModulesCmd struct{}

// NewModulesCmd returns a new instance which can be used to issue an
// rpc_modules JSON-RPC command.
func NewModulesCmd() *ModulesCmd {
	return &ModulesCmd{}
}

// BlockNumberCmd defines the eth_blockNumber JSON-RPC command.
type BlockNumberCmd struct{}

// NewBlockNumberCmd returns a new instance which can be used to issue an
// eth_blockNumber JSON-RPC command.
func NewBlockNumberCmd() *BlockNumberCmd {
	return &BlockNumberCmd{}
}

// GetBalanceCmd defines the eth_getBalance JSON-RPC command.
type GetBalanceCmd struct {
	Address string
	Block   *string `jsonrpcdefault:"\"latest\""`
}

// NewGetBalanceCmd returns a new instance which can be used to issue an
// eth_getBalance JSON-RPC command.
func NewGetBalanceCmd(address string, block *string) *GetBalanceCmd {
	return &GetBalanceCmd{
		Address: address,
		Block:   block,
	}
}

// GetTransactionCountCmd defines the eth_getTransactionCount JSON-RPC
// command.
type GetTransactionCountCmd struct {
	Address string
	Block   *string `jsonrpcdefault:"\"latest\""`
}

// NewGetTransactionCountCmd returns a new instance which can be used to issue
// an eth_getTransactionCount JSON-RPC command.
func NewGetTransactionCountCmd(address string, block *string) *GetTransactionCountCmd {
	return &GetTransactionCountCmd{
		Address: address,
		Block:   block,
	}
}

// GetBlockByNumberCmd defines the eth_getBlockByNumber JSON-RPC command.
type GetBlockByNumberCmd struct {
	Block   string
	FullTxs *bool `jsonrpcdefault:"false"`
}

// NewGetBlockByNumberCmd returns a new instance which can be used to issue an
// eth_getBlockByNumber JSON-RPC command.
func NewGetBlockByNumberCmd(block string, fullTxs *bool) *GetBlockByNumberCmd {
	return &GetBlockByNumberCmd{
		Block:   block,
		FullTxs: fullTxs,
	}
}

// GetTransactionByHashCmd defines the eth_getTransactionByHash JSON-RPC
// command.
type GetTransactionByHashCmd struct {
	Hash string
}

// NewGetTransactionByHashCmd returns a new instance which can be used to
// issue an eth_getTransactionByHash JSON-RPC command.
func NewGetTransactionByHashCmd(hash string) *GetTransactionByHashCmd {
	return &GetTransactionByHashCmd{
		Hash: hash,
	}
}

// GetLogsCmd defines the eth_getLogs JSON-RPC command.
type GetLogsCmd struct {
	Filter LogFilterArgs
}

// NewGetLogsCmd returns a new instance which can be used to issue an
// eth_getLogs JSON-RPC command.
func NewGetLogsCmd(filter LogFilterArgs) *GetLogsCmd {
	return &GetLogsCmd{
		Filter: filter,
	}
}

// SyncingCmd defines the eth_syncing JSON-RPC command.
type SyncingCmd struct{}

// NewSyncingCmd returns a new instance which can be used to issue an
// eth_syncing JSON-RPC command.
func NewSyncingCmd() *SyncingCmd {
	return &SyncingCmd{}
}

// GasPriceCmd defines the eth_gasPrice JSON-RPC command.
type GasPriceCmd struct{}

// NewGasPriceCmd returns a new instance which can be used to issue an
// eth_gasPrice JSON-RPC command.
func NewGasPriceCmd() *GasPriceCmd {
	return &GasPriceCmd{}
}

// AccountsCmd defines the eth_accounts JSON-RPC command.
type AccountsCmd struct{}

// NewAccountsCmd returns a new instance which can be used to issue an
// eth_accounts JSON-RPC command.
func NewAccountsCmd() *AccountsCmd {
	return &AccountsCmd{}
}

// SignCmd defines the eth_sign JSON-RPC command.
type SignCmd struct {
	Address string
	Data    string
}

// NewSignCmd returns a new instance which can be used to issue an eth_sign
// JSON-RPC command.
func NewSignCmd(address, data string) *SignCmd {
	return &SignCmd{
		Address: address,
		Data:    data,
	}
}

// SendTransactionCmd defines the eth_sendTransaction JSON-RPC command.
type SendTransactionCmd struct {
	Tx TransactionArgs
}

// NewSendTransactionCmd returns a new instance which can be used to issue an
// eth_sendTransaction JSON-RPC command.
func NewSendTransactionCmd(tx TransactionArgs) *SendTransactionCmd {
	return &SendTransactionCmd{
		Tx: tx,
	}
}

// SendRawTransactionCmd defines the eth_sendRawTransaction JSON-RPC command.
type SendRawTransactionCmd struct {
	Data string
}

// NewSendRawTransactionCmd returns a new instance which can be used to issue
// an eth_sendRawTransaction JSON-RPC command.
func NewSendRawTransactionCmd(data string) *SendRawTransactionCmd {
	return &SendRawTransactionCmd{
		Data: data,
	}
}

// SubscribeCmd defines the eth_subscribe JSON-RPC command.
type SubscribeCmd struct {
	Kind   string `jsonrpcusage:"\"newHeads|logs|newPendingTransactions|syncing\""`
	Filter *LogFilterArgs
}

// NewSubscribeCmd returns a new instance which can be used to issue an
// eth_subscribe JSON-RPC command.
func NewSubscribeCmd(kind string, filter *LogFilterArgs) *SubscribeCmd {
	return &SubscribeCmd{
		Kind:   kind,
		Filter: filter,
	}
}

// UnsubscribeCmd defines the eth_unsubscribe JSON-RPC command.
type UnsubscribeCmd struct {
	ID string
}

// NewUnsubscribeCmd returns a new instance which can be used to issue an
// eth_unsubscribe JSON-RPC command.
func NewUnsubscribeCmd(id string) *UnsubscribeCmd {
	return &UnsubscribeCmd{
		ID: id,
	}
}

// ListAccountsCmd defines the personal_listAccounts JSON-RPC command.
type ListAccountsCmd struct{}

// NewListAccountsCmd returns a new instance which can be used to issue a
// personal_listAccounts JSON-RPC command.
func NewListAccountsCmd() *ListAccountsCmd {
	return &ListAccountsCmd{}
}

// NewAccountCmd defines the personal_newAccount JSON-RPC command.
type NewAccountCmd struct {
	Passphrase string
}

// NewNewAccountCmd returns a new instance which can be used to issue a
// personal_newAccount JSON-RPC command.
func NewNewAccountCmd(passphrase string) *NewAccountCmd {
	return &NewAccountCmd{
		Passphrase: passphrase,
	}
}

// UnlockAccountCmd defines the personal_unlockAccount JSON-RPC command.
// Duration is the unlock window in seconds.
type UnlockAccountCmd struct {
	Address    string
	Passphrase string
	Duration   *uint64 `jsonrpcdefault:"300"`
}

// NewUnlockAccountCmd returns a new instance which can be used to issue a
// personal_unlockAccount JSON-RPC command.
func NewUnlockAccountCmd(address, passphrase string, duration *uint64) *UnlockAccountCmd {
	return &UnlockAccountCmd{
		Address:    address,
		Passphrase: passphrase,
		Duration:   duration,
	}
}

// LockAccountCmd defines the personal_lockAccount JSON-RPC command.
type LockAccountCmd struct {
	Address string
}

// NewLockAccountCmd returns a new instance which can be used to issue a
// personal_lockAccount JSON-RPC command.
func NewLockAccountCmd(address string) *LockAccountCmd {
	return &LockAccountCmd{
		Address: address,
	}
}

// RequestsToConfirmCmd defines the signer_requestsToConfirm JSON-RPC command.
type RequestsToConfirmCmd struct{}

// NewRequestsToConfirmCmd returns a new instance which can be used to issue a
// signer_requestsToConfirm JSON-RPC command.
func NewRequestsToConfirmCmd() *RequestsToConfirmCmd {
	return &RequestsToConfirmCmd{}
}

// ConfirmRequestCmd defines the signer_confirmRequest JSON-RPC command.  The
// optional Modified parameters replace the original transaction arguments
// when the confirmed side effect executes.
type ConfirmRequestCmd struct {
	ID       uint64
	Modified *TransactionArgs
}

// NewConfirmRequestCmd returns a new instance which can be used to issue a
// signer_confirmRequest JSON-RPC command.
func NewConfirmRequestCmd(id uint64, modified *TransactionArgs) *ConfirmRequestCmd {
	return &ConfirmRequestCmd{
		ID:       id,
		Modified: modified,
	}
}

// RejectRequestCmd defines the signer_rejectRequest JSON-RPC command.
type RejectRequestCmd struct {
	ID uint64
}

// NewRejectRequestCmd returns a new instance which can be used to issue a
// signer_rejectRequest JSON-RPC command.
func NewRejectRequestCmd(id uint64) *RejectRequestCmd {
	return &RejectRequestCmd{
		ID: id,
	}
}

// CheckRequestCmd defines the signer_checkRequest JSON-RPC command.
type CheckRequestCmd struct {
	ID uint64
}

// NewCheckRequestCmd returns a new instance which can be used to issue a
// signer_checkRequest JSON-RPC command.
func NewCheckRequestCmd(id uint64) *CheckRequestCmd {
	return &CheckRequestCmd{
		ID: id,
	}
}

// NodeVersionCmd defines the node_version JSON-RPC command.
type NodeVersionCmd struct{}

// NewNodeVersionCmd returns a new instance which can be used to issue a
// node_version JSON-RPC command.
func NewNodeVersionCmd() *NodeVersionCmd {
	return &NodeVersionCmd{}
}

// NodeStopCmd defines the node_stop JSON-RPC command.
type NodeStopCmd struct{}

// NewNodeStopCmd returns a new instance which can be used to issue a
// node_stop JSON-RPC command.
func NewNodeStopCmd() *NodeStopCmd {
	return &NodeStopCmd{}
}

func init() {
	// No special flags for commands in this file.
	flags := dcrjson.UsageFlag(0)

	dcrjson.MustRegister(Method("web3_clientVersion"), (*ClientVersionCmd)(nil), flags)
	dcrjson.MustRegister(Method("net_version"), (*NetVersionCmd)(nil), flags)
	dcrjson.MustRegister(Method("net_peerCount"), (*PeerCountCmd)(nil), flags)
	dcrjson.MustRegister(Method("net_listening"), (*NetListeningCmd)(nil), flags)
	dcrjson.MustRegister(Method("rpc_modules"), (*ModulesCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_blockNumber"), (*BlockNumberCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_getBalance"), (*GetBalanceCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_getTransactionCount"), (*GetTransactionCountCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_getBlockByNumber"), (*GetBlockByNumberCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_getTransactionByHash"), (*GetTransactionByHashCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_getLogs"), (*GetLogsCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_syncing"), (*SyncingCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_gasPrice"), (*GasPriceCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_accounts"), (*AccountsCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_sign"), (*SignCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_sendTransaction"), (*SendTransactionCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_sendRawTransaction"), (*SendRawTransactionCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_subscribe"), (*SubscribeCmd)(nil), flags)
	dcrjson.MustRegister(Method("eth_unsubscribe"), (*UnsubscribeCmd)(nil), flags)
	dcrjson.MustRegister(Method("personal_listAccounts"), (*ListAccountsCmd)(nil), flags)
	dcrjson.MustRegister(Method("personal_newAccount"), (*NewAccountCmd)(nil), flags)
	dcrjson.MustRegister(Method("personal_unlockAccount"), (*UnlockAccountCmd)(nil), flags)
	dcrjson.MustRegister(Method("personal_lockAccount"), (*LockAccountCmd)(nil), flags)
	dcrjson.MustRegister(Method("signer_requestsToConfirm"), (*RequestsToConfirmCmd)(nil), flags)
	dcrjson.MustRegister(Method("signer_confirmRequest"), (*ConfirmRequestCmd)(nil), flags)
	dcrjson.MustRegister(Method("signer_rejectRequest"), (*RejectRequestCmd)(nil), flags)
	dcrjson.MustRegister(Method("signer_checkRequest"), (*CheckRequestCmd)(nil), flags)
	dcrjson.MustRegister(Method("node_version"), (*NodeVersionCmd)(nil), flags)
	dcrjson.MustRegister(Method("node_stop"), (*NodeStopCmd)(nil), flags)
}
