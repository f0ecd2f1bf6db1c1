// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	stdlog "log"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/gorilla/websocket"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/XertroV/parity/internal/version"
	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// API version constants
const (
	jsonrpcSemverString = "1.0.0"
	jsonrpcSemverMajor  = 1
	jsonrpcSemverMinor  = 0
	jsonrpcSemverPatch  = 0
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// rpcReadLimit is the maximum number of bytes allowed for a request
	// body read over HTTP.
	rpcReadLimit = 1 << 23 // 8 MiB

	// defaultRPCCallTimeout is the per-call handler timeout applied when
	// the configuration does not provide one.
	defaultRPCCallTimeout = 30 * time.Second

	// defaultConfirmTTL is the confirmation queue entry lifetime applied
	// when the configuration does not provide one.
	defaultConfirmTTL = 5 * time.Minute
)

// batchedRequestPrefix identifies a batched JSON-RPC request body.
var batchedRequestPrefix = []byte("[")

// commandHandler describes a callback function used to handle a specific
// command.  The session the request arrived on is provided so handlers can
// reach the confirmation queue and the subscription manager on behalf of the
// calling client.
type commandHandler func(context.Context, *Server, *Session, interface{}) (interface{}, error)

// methodInfo associates a command handler with the capability a session must
// hold to invoke it and whether the method requires a duplex transport.
type methodInfo struct {
	handler    commandHandler
	capability string
	duplexOnly bool
}

// rpcHandlers maps RPC command strings to the appropriate handler and its
// dispatch constraints.  This is set by init to avoid an initialization loop
// through handlers that consult the map.
var rpcHandlers map[types.Method]methodInfo
var rpcHandlersBeforeInit = map[types.Method]methodInfo{
	"web3_clientVersion": {handler: handleClientVersion, capability: capWeb3},
	"rpc_modules":        {handler: handleModules, capability: capWeb3},

	"net_version":   {handler: handleNetVersion, capability: capNet},
	"net_peerCount": {handler: handlePeerCount, capability: capNet},
	"net_listening": {handler: handleNetListening, capability: capNet},

	"eth_blockNumber":          {handler: handleBlockNumber, capability: capChain},
	"eth_getBalance":           {handler: handleGetBalance, capability: capChain},
	"eth_getTransactionCount":  {handler: handleGetTransactionCount, capability: capChain},
	"eth_getBlockByNumber":     {handler: handleGetBlockByNumber, capability: capChain},
	"eth_getTransactionByHash": {handler: handleGetTransactionByHash, capability: capChain},
	"eth_getLogs":              {handler: handleGetLogs, capability: capChain},
	"eth_syncing":              {handler: handleSyncing, capability: capChain},
	"eth_gasPrice":             {handler: handleGasPrice, capability: capChain},
	"eth_sendRawTransaction":   {handler: handleSendRawTransaction, capability: capChain},

	"eth_accounts":           {handler: handleAccounts, capability: capAccounts},
	"personal_listAccounts":  {handler: handleAccounts, capability: capAccounts},
	"personal_newAccount":    {handler: handleNewAccount, capability: capAccounts},
	"personal_unlockAccount": {handler: handleUnlockAccount, capability: capAccounts},
	"personal_lockAccount":   {handler: handleLockAccount, capability: capAccounts},

	"eth_sign":            {handler: handleSign, capability: capSigner},
	"eth_sendTransaction": {handler: handleSendTransaction, capability: capSigner},
	"signer_checkRequest": {handler: handleCheckRequest, capability: capSigner},

	"signer_requestsToConfirm": {handler: handleRequestsToConfirm, capability: capConfirm},
	"signer_confirmRequest":    {handler: handleConfirmRequest, capability: capConfirm},
	"signer_rejectRequest":     {handler: handleRejectRequest, capability: capConfirm},

	"eth_subscribe":   {handler: handleSubscribe, capability: capPubSub, duplexOnly: true},
	"eth_unsubscribe": {handler: handleUnsubscribe, capability: capPubSub, duplexOnly: true},

	"node_version": {handler: handleNodeVersion, capability: capWeb3},
	"node_stop":    {handler: handleNodeStop, capability: capAdmin},
}

// rpcInternalError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.  The
// context parameter is only used in the log message and may be empty if it's
// not needed.
func rpcInternalError(errStr, context string) *dcrjson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	log.Error(logStr)
	return dcrjson.NewRPCError(dcrjson.ErrRPCInternal.Code, errStr)
}

// rpcInvalidError is a convenience function to convert an invalid parameter
// error to an RPC error with the appropriate code set.
func rpcInvalidError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCInvalidParameter,
		fmt.Sprintf(fmtStr, args...))
}

// rpcUnauthorizedError is a convenience function for a capability check
// failure with the appropriate code set.
func rpcUnauthorizedError(method string) *dcrjson.RPCError {
	return dcrjson.NewRPCError(types.ErrRPCUnauthorized,
		fmt.Sprintf("session not authorized for method %q", method))
}

// rpcEngineError converts a backend error to an RPC error, giving the engine
// unavailable sentinel its dedicated code.  The context parameter is only
// used in the log message and may be empty if it's not needed.
func rpcEngineError(err error, context string) *dcrjson.RPCError {
	if errors.Is(err, ErrEngineUnavailable) {
		return dcrjson.NewRPCError(types.ErrRPCEngineUnavailable,
			"the backend engine is unavailable")
	}
	return rpcInternalError(err.Error(), context)
}

// encodeUint64 returns the 0x-prefixed minimal hex encoding used for
// quantities throughout the API.
func encodeUint64(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// encodeBig returns the 0x-prefixed minimal hex encoding of the big integer.
// A nil value encodes as zero.
func encodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// decodeBlockTag converts a block parameter to a concrete block number.  The
// tags "latest" and "pending" resolve to the current best block, "earliest"
// to block zero, and anything else must be a 0x-prefixed hex quantity.
func (s *Server) decodeBlockTag(tag string) (uint64, error) {
	switch tag {
	case "latest", "pending":
		best, err := s.cfg.Chain.BestBlockNumber()
		if err != nil {
			return 0, rpcEngineError(err, "Could not obtain best block")
		}
		return best, nil

	case "earliest":
		return 0, nil

	default:
		digits, ok := strings.CutPrefix(tag, "0x")
		if !ok {
			return 0, rpcInvalidError("invalid block parameter %q", tag)
		}
		number, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return 0, rpcInvalidError("invalid block parameter %q: %v",
				tag, err)
		}
		return number, nil
	}
}

// handleClientVersion implements the web3_clientVersion command.
func handleClientVersion(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	return s.cfg.ClientVersion, nil
}

// handleModules implements the rpc_modules command.  It reports the API
// groups the server was configured to expose, each with the API version.
func handleModules(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	modules := make(map[string]string, len(s.enabledAPIs))
	for tag := range s.enabledAPIs {
		modules[tag] = "1.0"
	}
	return modules, nil
}

// handleNetVersion implements the net_version command.
func handleNetVersion(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	return strconv.FormatUint(s.cfg.Chain.ChainID(), 10), nil
}

// handlePeerCount implements the net_peerCount command.
func handlePeerCount(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	return encodeUint64(uint64(s.cfg.NetManager.PeerCount())), nil
}

// handleNetListening implements the net_listening command.
func handleNetListening(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	return s.cfg.NetManager.Listening(), nil
}

// handleBlockNumber implements the eth_blockNumber command.
func handleBlockNumber(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	best, err := s.cfg.Chain.BestBlockNumber()
	if err != nil {
		return nil, rpcEngineError(err, "Could not obtain best block")
	}
	return encodeUint64(best), nil
}

// handleGetBalance implements the eth_getBalance command.
func handleGetBalance(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetBalanceCmd)

	number, err := s.decodeBlockTag(*c.Block)
	if err != nil {
		return nil, err
	}
	balance, err := s.cfg.Chain.BalanceAt(ctx, c.Address, number)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, rpcInvalidError("block %d not found", number)
		}
		return nil, rpcEngineError(err, "Could not obtain balance")
	}
	return encodeBig(balance), nil
}

// handleGetTransactionCount implements the eth_getTransactionCount command.
func handleGetTransactionCount(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetTransactionCountCmd)

	number, err := s.decodeBlockTag(*c.Block)
	if err != nil {
		return nil, err
	}
	nonce, err := s.cfg.Chain.NonceAt(ctx, c.Address, number)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, rpcInvalidError("block %d not found", number)
		}
		return nil, rpcEngineError(err, "Could not obtain nonce")
	}
	return encodeUint64(nonce), nil
}

// handleGetBlockByNumber implements the eth_getBlockByNumber command.
//
// Unknown blocks produce a null result rather than an error to match the
// established client convention for this method.
func handleGetBlockByNumber(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetBlockByNumberCmd)

	number, err := s.decodeBlockTag(c.Block)
	if err != nil {
		return nil, err
	}
	block, err := s.cfg.Chain.BlockByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, nil
		}
		return nil, rpcEngineError(err, "Could not obtain block")
	}

	// The chain backend populates transactions as hex-encoded hashes.
	// Swap them for full transaction objects when requested.
	if *c.FullTxs {
		full := make([]json.RawMessage, 0, len(block.Transactions))
		for _, rawHash := range block.Transactions {
			var txHash string
			if err := json.Unmarshal(rawHash, &txHash); err != nil {
				return nil, rpcInternalError(err.Error(),
					"Malformed transaction hash in block")
			}
			tx, err := s.cfg.Chain.TransactionByHash(ctx, txHash)
			if err != nil {
				if errors.Is(err, ErrTxNotFound) {
					continue
				}
				return nil, rpcEngineError(err, "Could not obtain transaction")
			}
			rawTx, err := json.Marshal(tx)
			if err != nil {
				return nil, rpcInternalError(err.Error(),
					"Could not marshal transaction")
			}
			full = append(full, rawTx)
		}
		block.Transactions = full
	}
	return block, nil
}

// handleGetTransactionByHash implements the eth_getTransactionByHash command.
//
// Unknown transactions produce a null result rather than an error to match
// the established client convention for this method.
func handleGetTransactionByHash(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetTransactionByHashCmd)

	tx, err := s.cfg.Chain.TransactionByHash(ctx, c.Hash)
	if err != nil {
		if errors.Is(err, ErrTxNotFound) {
			return nil, nil
		}
		return nil, rpcEngineError(err, "Could not obtain transaction")
	}
	return tx, nil
}

// handleGetLogs implements the eth_getLogs command.
func handleGetLogs(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetLogsCmd)

	fromTag, toTag := "latest", "latest"
	if c.Filter.FromBlock != nil {
		fromTag = *c.Filter.FromBlock
	}
	if c.Filter.ToBlock != nil {
		toTag = *c.Filter.ToBlock
	}
	from, err := s.decodeBlockTag(fromTag)
	if err != nil {
		return nil, err
	}
	to, err := s.decodeBlockTag(toTag)
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, rpcInvalidError("fromBlock %d is after toBlock %d",
			from, to)
	}

	logs, err := s.cfg.Chain.Logs(ctx, from, to, &c.Filter)
	if err != nil {
		return nil, rpcEngineError(err, "Could not obtain logs")
	}
	if logs == nil {
		logs = []types.Log{}
	}
	return logs, nil
}

// handleSyncing implements the eth_syncing command.
func handleSyncing(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	status := s.cfg.Chain.SyncStatus()
	if status == nil {
		return false, nil
	}
	return status, nil
}

// handleGasPrice implements the eth_gasPrice command.
func handleGasPrice(ctx context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	price, err := s.cfg.Chain.GasPrice(ctx)
	if err != nil {
		return nil, rpcEngineError(err, "Could not obtain gas price")
	}
	return encodeBig(price), nil
}

// handleSendRawTransaction implements the eth_sendRawTransaction command.
func handleSendRawTransaction(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SendRawTransactionCmd)

	if !strings.HasPrefix(c.Data, "0x") {
		return nil, rpcInvalidError("raw transaction must be a 0x-prefixed " +
			"hex string")
	}
	txHash, err := s.cfg.TxPool.SubmitTransaction(ctx, c.Data)
	if err != nil {
		return nil, rpcEngineError(err, "Could not submit transaction")
	}
	return txHash, nil
}

// handleAccounts implements the eth_accounts and personal_listAccounts
// commands.
func handleAccounts(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	accounts := s.cfg.AccountManager.Accounts()
	if accounts == nil {
		accounts = []string{}
	}
	return accounts, nil
}

// handleNewAccount implements the personal_newAccount command.
func handleNewAccount(_ context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.NewAccountCmd)

	address, err := s.cfg.AccountManager.NewAccount(c.Passphrase)
	if err != nil {
		return nil, rpcEngineError(err, "Could not create account")
	}
	return address, nil
}

// handleUnlockAccount implements the personal_unlockAccount command.  A zero
// duration keeps the account unlocked until it is explicitly locked.
func handleUnlockAccount(_ context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.UnlockAccountCmd)

	timeout := time.Duration(*c.Duration) * time.Second
	err := s.cfg.AccountManager.Unlock(c.Address, c.Passphrase, timeout)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, rpcInvalidError("unknown account %s", c.Address)
		}
		return nil, rpcEngineError(err, "Could not unlock account")
	}
	return true, nil
}

// handleLockAccount implements the personal_lockAccount command.
func handleLockAccount(_ context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.LockAccountCmd)

	err := s.cfg.AccountManager.Lock(c.Address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, rpcInvalidError("unknown account %s", c.Address)
		}
		return nil, rpcEngineError(err, "Could not lock account")
	}
	return true, nil
}

// handleSign implements the eth_sign command.  When the key for the signing
// address is locked, the request is parked in the confirmation queue and a
// pending marker carrying its request id is returned instead of a signature.
func handleSign(ctx context.Context, s *Server, sess *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SignCmd)

	am := s.cfg.AccountManager
	if !am.HasAccount(c.Address) {
		return nil, rpcInvalidError("unknown account %s", c.Address)
	}

	signature, err := am.SignData(ctx, c.Address, c.Data)
	if err == nil {
		return signature, nil
	}
	if !errors.Is(err, ErrAccountLocked) {
		return nil, rpcEngineError(err, "Could not sign data")
	}

	address, data := c.Address, c.Data
	params, err := json.Marshal([]string{address, data})
	if err != nil {
		return nil, rpcInternalError(err.Error(), "Could not marshal params")
	}
	id := s.confirmQ.enqueue(sess.ID(), "eth_sign", params, s.confirmTTL(),
		func(ctx context.Context, _ *types.TransactionArgs) (interface{}, error) {
			return am.SignData(ctx, address, data)
		})
	return &types.AsyncPendingResult{
		Status:    types.StatusPending,
		RequestID: id,
	}, nil
}

// handleSendTransaction implements the eth_sendTransaction command.  When the
// key for the sending address is locked, the request is parked in the
// confirmation queue and a pending marker carrying its request id is returned
// instead of a transaction hash.  A confirming actor may replace the
// transaction arguments wholesale before execution.
func handleSendTransaction(ctx context.Context, s *Server, sess *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SendTransactionCmd)

	if c.Tx.From == "" {
		return nil, rpcInvalidError("transaction from address is required")
	}
	am := s.cfg.AccountManager
	if !am.HasAccount(c.Tx.From) {
		return nil, rpcInvalidError("unknown account %s", c.Tx.From)
	}

	txArgs := c.Tx
	signedTx, _, err := am.SignTransaction(ctx, &txArgs)
	if err == nil {
		txHash, err := s.cfg.TxPool.SubmitTransaction(ctx, signedTx)
		if err != nil {
			return nil, rpcEngineError(err, "Could not submit transaction")
		}
		return txHash, nil
	}
	if !errors.Is(err, ErrAccountLocked) {
		return nil, rpcEngineError(err, "Could not sign transaction")
	}

	params, err := json.Marshal(&txArgs)
	if err != nil {
		return nil, rpcInternalError(err.Error(), "Could not marshal params")
	}
	id := s.confirmQ.enqueue(sess.ID(), "eth_sendTransaction", params,
		s.confirmTTL(),
		func(ctx context.Context, modified *types.TransactionArgs) (interface{}, error) {
			execArgs := txArgs
			if modified != nil {
				execArgs = *modified
			}
			signedTx, _, err := am.SignTransaction(ctx, &execArgs)
			if err != nil {
				return nil, err
			}
			return s.cfg.TxPool.SubmitTransaction(ctx, signedTx)
		})
	return &types.AsyncPendingResult{
		Status:    types.StatusPending,
		RequestID: id,
	}, nil
}

// handleRequestsToConfirm implements the signer_requestsToConfirm command.
func handleRequestsToConfirm(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	return s.confirmQ.listPending(), nil
}

// handleConfirmRequest implements the signer_confirmRequest command.
func handleConfirmRequest(ctx context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.ConfirmRequestCmd)
	return s.confirmQ.confirm(ctx, c.ID, c.Modified)
}

// handleRejectRequest implements the signer_rejectRequest command.
func handleRejectRequest(_ context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.RejectRequestCmd)
	if err := s.confirmQ.reject(c.ID); err != nil {
		return nil, err
	}
	return true, nil
}

// handleCheckRequest implements the signer_checkRequest command.
func handleCheckRequest(_ context.Context, s *Server, _ *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.CheckRequestCmd)
	return s.confirmQ.check(c.ID)
}

// handleSubscribe implements the eth_subscribe command.
func handleSubscribe(_ context.Context, s *Server, sess *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.SubscribeCmd)
	return s.ntfnMgr.Subscribe(sess, c.Kind, c.Filter)
}

// handleUnsubscribe implements the eth_unsubscribe command.
func handleUnsubscribe(_ context.Context, s *Server, sess *Session, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.UnsubscribeCmd)
	return s.ntfnMgr.Unsubscribe(sess, c.ID), nil
}

// handleNodeVersion implements the node_version command.
func handleNodeVersion(_ context.Context, _ *Server, _ *Session, _ interface{}) (interface{}, error) {
	runtimeVer := strings.ReplaceAll(runtime.Version(), ".", "-")
	buildMeta := version.NormalizeString(runtimeVer)
	build := version.NormalizeString(version.BuildMetadata)
	if build != "" {
		buildMeta = fmt.Sprintf("%s.%s", build, buildMeta)
	}
	result := map[string]types.VersionResult{
		"parityjsonrpcapi": {
			VersionString: jsonrpcSemverString,
			Major:         jsonrpcSemverMajor,
			Minor:         jsonrpcSemverMinor,
			Patch:         jsonrpcSemverPatch,
		},
		"parity": {
			VersionString: version.String(),
			Major:         uint32(version.Major),
			Minor:         uint32(version.Minor),
			Patch:         uint32(version.Patch),
			Prerelease:    version.NormalizeString(version.PreRelease),
			BuildMetadata: buildMeta,
		},
	}
	return result, nil
}

// handleNodeStop implements the node_stop command.
func handleNodeStop(_ context.Context, s *Server, _ *Session, _ interface{}) (interface{}, error) {
	select {
	case s.requestProcessShutdown <- struct{}{}:
	default:
	}
	return "parity stopping.", nil
}

// Server provides a concurrent safe RPC server to a chain engine.
type Server struct {
	numClients   atomic.Int32
	numWsClients atomic.Int32

	cfg                    Config
	hmac                   hash.Hash
	hmacMu                 sync.Mutex
	authsha                [sha256.Size]byte
	limitauthsha           [sha256.Size]byte
	enabledAPIs            map[string]struct{}
	ntfnMgr                *subManager
	sessions               *sessionRegistry
	confirmQ               *confirmQueue
	wg                     sync.WaitGroup
	requestProcessShutdown chan struct{}
}

// confirmTTL returns the configured lifetime for confirmation queue entries.
func (s *Server) confirmTTL() time.Duration {
	if s.cfg.ConfirmTTL > 0 {
		return s.cfg.ConfirmTTL
	}
	return defaultConfirmTTL
}

// shutdown terminates the processes associated with the rpc server.
func (s *Server) shutdown() error {
	log.Warnf("RPC server shutting down")
	for _, listener := range s.cfg.Listeners {
		err := listener.Close()
		if err != nil {
			log.Errorf("Problem shutting down rpc: %v", err)
			return err
		}
	}
	if s.cfg.IPCListener != nil {
		if err := s.cfg.IPCListener.Close(); err != nil {
			log.Errorf("Problem shutting down rpc: %v", err)
			return err
		}
	}
	s.wg.Wait()
	log.Infof("RPC server shutdown complete")
	return nil
}

// RequestedProcessShutdown returns a channel that is sent to when an
// authorized RPC client requests the process to shutdown.  If the request can
// not be read immediately, it is dropped.
func (s *Server) RequestedProcessShutdown() <-chan struct{} {
	return s.requestProcessShutdown
}

// NotifyBlockConnected passes a block newly accepted by the chain engine to
// the subscription manager for fan-out, along with the logs its transactions
// produced.
//
// This function is safe for concurrent access.
func (s *Server) NotifyBlockConnected(block *types.Block, logs []types.Log) {
	s.ntfnMgr.NotifyBlockConnected(block, logs)
}

// NotifyNewTransaction passes a transaction newly accepted into the pending
// pool to the subscription manager for fan-out.
//
// This function is safe for concurrent access.
func (s *Server) NotifyNewTransaction(txHash string) {
	s.ntfnMgr.NotifyNewTransaction(txHash)
}

// NotifySyncState passes a sync progress change to the subscription manager
// for fan-out.  A nil status means the node became fully synced.
//
// This function is safe for concurrent access.
func (s *Server) NotifySyncState(status *types.SyncStatus) {
	s.ntfnMgr.NotifySyncState(status)
}

// limitConnections responds with a 503 service unavailable and returns true
// if adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(s.numClients.Load()+1) > s.cfg.RPCMaxClients {
		log.Infof("Max RPC clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxClients,
			remoteAddr)
		http.Error(w, "503 Too busy.  Try again later.",
			http.StatusServiceUnavailable)
		return true
	}
	return false
}

// incrementClients adds one to the number of connected RPC clients.  Note this
// only applies to standard clients.  Websocket clients have their own limits
// and are tracked separately.
//
// This function is safe for concurrent access.
func (s *Server) incrementClients() {
	s.numClients.Add(1)
}

// decrementClients subtracts one from the number of connected RPC clients.
// Note this only applies to standard clients.  Websocket clients have their
// own limits and are tracked separately.
//
// This function is safe for concurrent access.
func (s *Server) decrementClients() {
	s.numClients.Add(-1)
}

// authMAC calculates the MAC (currently HMAC-SHA256) of an Authorization
// header, keyed with a random key created during server creation.  The MAC is
// appended to dst, and the appended slice is returned.
func (s *Server) authMAC(dst, auth []byte) []byte {
	s.hmacMu.Lock()
	s.hmac.Reset()
	s.hmac.Write(auth)
	dst = s.hmac.Sum(dst)
	s.hmacMu.Unlock()
	return dst
}

// checkAuthMAC checks the HTTP Basic authentication string by comparing
// it with the already generated hash.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).
func (s *Server) checkAuthMAC(auth, remoteAddr string) (bool, bool) {
	mac := make([]byte, 0, sha256.Size)
	mac = s.authMAC(mac, []byte(auth))

	cmp := subtle.ConstantTimeCompare(mac, s.authsha[:])
	limitcmp := subtle.ConstantTimeCompare(mac, s.limitauthsha[:])
	if cmp|limitcmp == 0 {
		// Request's auth doesn't match either user
		log.Warnf("RPC authentication failure from %s", remoteAddr)
		return false, false
	}
	return true, cmp == 1
}

// checkAuthUserPass checks the correctness of username and password by
// generating the corresponding HTTP Basic authentication string then
// compare the string with the already generated hash.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).
func (s *Server) checkAuthUserPass(user, pass, remoteAddr string) (bool, bool) {
	login := user + ":" + pass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	return s.checkAuthMAC(auth, remoteAddr)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client in
// the HTTP request r.  If the supplied authentication does not match the
// username and password expected, a non-nil error is returned.
//
// This check is time-constant.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false). The second is
// always false if the first is.
func (s *Server) checkAuth(r *http.Request, require bool) (bool, bool, error) {
	// If admin-level RPC user and pass options are not set, this always
	// succeeds.  This will be the case when TLS client certificates are
	// being used for authentication.
	if s.authsha == ([32]byte{}) {
		return true, true, nil
	}

	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		if require {
			log.Warnf("RPC authentication failure from %s",
				r.RemoteAddr)
			return false, false, errors.New("auth failure")
		}

		return false, false, nil
	}

	authed, isAdmin := s.checkAuthMAC(authhdr[0], r.RemoteAddr)
	if !authed {
		return false, false, errors.New("auth failure")
	}
	return authed, isAdmin, nil
}

// grantCapabilities computes the capability set for a new session by
// intersecting the ceiling for its transport and authentication level with
// the API groups the server was configured to expose.  Local socket sessions
// are fully trusted, authenticated remote admin sessions get everything
// except the confirming role, and limited sessions get the read-only groups.
func (s *Server) grantCapabilities(kind TransportKind, isAdmin bool) map[string]struct{} {
	var ceiling []string
	switch {
	case kind == TransportIPC:
		ceiling = allCapabilities
	case isAdmin:
		ceiling = []string{capWeb3, capNet, capChain, capSigner,
			capAccounts, capPubSub, capAdmin}
	default:
		ceiling = []string{capWeb3, capNet, capChain, capPubSub}
	}

	var requested []string
	for _, tag := range ceiling {
		if _, ok := s.enabledAPIs[tag]; ok {
			requested = append(requested, tag)
		}
	}
	return intersectCapabilities(capabilitySet(ceiling...), requested)
}

// terminateSession drops the session from the registry and cancels any
// subscriptions it holds.  Confirmation queue entries the session originated
// remain queued so a confirming actor can still resolve them.  Repeat calls
// for the same session are no-ops.
func (s *Server) terminateSession(id uint64) {
	sess, closedNow := s.sessions.remove(id)
	if !closedNow {
		return
	}
	if sess.sink != nil {
		s.ntfnMgr.RemoveSession(id)
	}
	log.Debugf("Terminated %s session %d from %s", sess.Transport(),
		sess.ID(), sess.Origin())
}

// parsedRPCCmd represents a JSON-RPC request object that has been parsed into
// a known concrete command along with any error that might have happened while
// parsing it.
type parsedRPCCmd struct {
	jsonrpc string
	id      interface{}
	method  types.Method
	params  interface{}
	err     *dcrjson.RPCError
}

// parseCmd parses a JSON-RPC request object into known concrete command.  The
// err field of the returned parsedRPCCmd struct will contain an RPC error that
// is suitable for use in replies if the command is invalid in some way such as
// an unregistered command or invalid parameters.
func parseCmd(request *dcrjson.Request) *parsedRPCCmd {
	method := types.Method(request.Method)
	parsedCmd := parsedRPCCmd{
		jsonrpc: request.Jsonrpc,
		id:      request.ID,
		method:  method,
	}

	params, err := dcrjson.ParseParams(method, request.Params)
	if err != nil {
		if errors.Is(err, dcrjson.ErrUnregisteredMethod) {
			parsedCmd.err = dcrjson.ErrRPCMethodNotFound
			return &parsedCmd
		}

		// Otherwise, some type of invalid parameters is the cause, so
		// produce the equivalent RPC error.
		parsedCmd.err = rpcInvalidError("Failed to parse request: %v", err)
		return &parsedCmd
	}

	parsedCmd.params = params
	return &parsedCmd
}

// standardCmdResult runs the handler registered for a parsed command after
// enforcing the per-call timeout at the dispatch boundary.  The handler keeps
// running with a cancelled context when the timeout trips, but its eventual
// result is discarded.
func (s *Server) standardCmdResult(ctx context.Context, sess *Session, cmd *parsedRPCCmd) (interface{}, error) {
	mi, ok := rpcHandlers[cmd.method]
	if !ok {
		return nil, dcrjson.ErrRPCMethodNotFound
	}

	timeout := s.cfg.RPCCallTimeout
	if timeout <= 0 {
		timeout = defaultRPCCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type handlerResult struct {
		result interface{}
		err    error
	}
	resultChan := make(chan handlerResult, 1)
	go func() {
		result, err := mi.handler(ctx, s, sess, cmd.params)
		resultChan <- handlerResult{result: result, err: err}
	}()

	select {
	case hr := <-resultChan:
		return hr.result, hr.err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warnf("Method %s exceeded the %v call timeout", cmd.method,
				timeout)
			return nil, dcrjson.NewRPCError(types.ErrRPCTimeout,
				fmt.Sprintf("method %s did not complete within %v",
					cmd.method, timeout))
		}
		return nil, rpcInternalError("request cancelled", "")
	}
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  It will automatically convert errors that are not of the
// type *dcrjson.RPCError to the appropriate type as needed.
func createMarshalledReply(rpcVersion string, id interface{}, result interface{}, replyErr error) ([]byte, error) {
	var jsonErr *dcrjson.RPCError
	if replyErr != nil && !errors.As(replyErr, &jsonErr) {
		jsonErr = rpcInternalError(replyErr.Error(), "")
	}

	return dcrjson.MarshalResponse(rpcVersion, id, result, jsonErr)
}

// sanitizeError strips handler error detail before it is returned to
// sessions that are not trusted with it.  Structured RPC errors pass through
// unchanged since handlers only put client-safe detail in them.
func (s *Server) sanitizeError(sess *Session, replyErr error) error {
	if replyErr == nil || sess.Trusted() {
		return replyErr
	}
	var rpcErr *dcrjson.RPCError
	if errors.As(replyErr, &rpcErr) {
		return rpcErr
	}
	log.Debugf("Suppressing error detail for session %d: %v", sess.ID(),
		replyErr)
	return dcrjson.NewRPCError(dcrjson.ErrRPCInternal.Code, "internal error")
}

// processRequest checks a single parsed request against the session's
// capability set and the method's transport constraint, dispatches it and
// returns a marshalled response.  A nil return means no response is due.
func (s *Server) processRequest(ctx context.Context, request *dcrjson.Request, sess *Session) []byte {
	var result interface{}
	var jsonErr error

	if request.Method == "" {
		jsonErr = &dcrjson.RPCError{
			Code:    dcrjson.ErrRPCInvalidRequest.Code,
			Message: "Invalid request: malformed",
		}
		msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
		if err != nil {
			log.Errorf("Failed to marshal reply: %v", err)
			return nil
		}
		return msg
	}

	// Valid requests with no ID (notifications) must not have a response
	// per the JSON-RPC spec.
	if request.ID == nil {
		return nil
	}

	// Enforce the session capability policy and the transport constraint
	// for the method before spending any effort parsing parameters.
	if mi, ok := rpcHandlers[types.Method(request.Method)]; ok {
		switch {
		case !sess.HasCapability(mi.capability):
			jsonErr = rpcUnauthorizedError(request.Method)

		case mi.duplexOnly && sess.Transport() == TransportHTTP:
			jsonErr = dcrjson.NewRPCError(types.ErrRPCUnsupportedOnTransport,
				fmt.Sprintf("method %q requires a duplex transport",
					request.Method))
		}
	}

	if jsonErr == nil {
		// Attempt to parse the JSON-RPC request into a known concrete
		// command.
		parsedCmd := parseCmd(request)
		if parsedCmd.err != nil {
			jsonErr = parsedCmd.err
		} else {
			result, jsonErr = s.standardCmdResult(ctx, sess, parsedCmd)
			jsonErr = s.sanitizeError(sess, jsonErr)
		}
	}

	// Marshal the response.
	msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
	if err != nil {
		log.Errorf("Failed to marshal reply: %v", err)
		return nil
	}
	return msg
}

// processRequestBody parses a raw request body that may contain either a
// single request or a batch and returns the marshalled response body, which
// is nil when no response is due.  It is shared by every transport adapter.
func (s *Server) processRequestBody(ctx context.Context, body []byte, sess *Session) []byte {
	var results []json.RawMessage
	var batchSize int
	batchedRequest := bytes.HasPrefix(bytes.TrimSpace(body), batchedRequestPrefix)

	// Process a single request
	if !batchedRequest {
		var req dcrjson.Request
		var resp json.RawMessage
		err := json.Unmarshal(body, &req)
		if err != nil {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCParse.Code,
				Message: fmt.Sprintf("Failed to parse request: %v", err),
			}
			resp, err = dcrjson.MarshalResponse("2.0", nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to create reply: %v", err)
			}
		} else {
			resp = s.processRequest(ctx, &req, sess)
		}

		if resp != nil {
			results = append(results, resp)
		}
	}

	// Process a batched request
	if batchedRequest {
		var batchedRequests []json.RawMessage
		var resp json.RawMessage
		err := json.Unmarshal(body, &batchedRequests)
		if err != nil {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCParse.Code,
				Message: fmt.Sprintf("Failed to parse request: %v", err),
			}
			resp, err = dcrjson.MarshalResponse("2.0", nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to create reply: %v", err)
			}

			if resp != nil {
				results = append(results, resp)
			}
		}

		if err == nil {
			// Response with an empty batch error if the batch size is zero
			if len(batchedRequests) == 0 {
				jsonErr := &dcrjson.RPCError{
					Code:    dcrjson.ErrRPCInvalidRequest.Code,
					Message: "Invalid request: empty batch",
				}
				resp, err = dcrjson.MarshalResponse("2.0", nil, nil, jsonErr)
				if err != nil {
					log.Errorf("Failed to marshal reply: %v", err)
				}

				if resp != nil {
					results = append(results, resp)
				}
			}

			// Process each batch entry individually
			if len(batchedRequests) > 0 {
				batchSize = len(batchedRequests)

				for _, entry := range batchedRequests {
					var req dcrjson.Request
					err := json.Unmarshal(entry, &req)
					if err != nil {
						jsonErr := &dcrjson.RPCError{
							Code: dcrjson.ErrRPCInvalidRequest.Code,
							Message: fmt.Sprintf("Invalid request: %v",
								err),
						}
						resp, err = dcrjson.MarshalResponse("", nil, nil, jsonErr)
						if err != nil {
							log.Errorf("Failed to create reply: %v", err)
						}

						if resp != nil {
							results = append(results, resp)
						}
						continue
					}

					resp = s.processRequest(ctx, &req, sess)
					if resp != nil {
						results = append(results, resp)
					}
				}
			}
		}
	}

	if batchedRequest && batchSize > 0 {
		if len(results) == 0 {
			return nil
		}

		// Form the batched response json
		var buffer bytes.Buffer
		buffer.WriteByte('[')
		for idx, reply := range results {
			if idx == len(results)-1 {
				buffer.Write(reply)
				buffer.WriteByte(']')
				break
			}
			buffer.Write(reply)
			buffer.WriteByte(',')
		}
		return buffer.Bytes()
	}

	// Respond with the first results entry for single requests
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *Server) jsonRPCRead(ctx context.Context, w http.ResponseWriter, r *http.Request, isAdmin bool) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	// Read and close the JSON-RPC request body from the caller.
	bodyReader := io.LimitReader(r.Body, rpcReadLimit)
	body, err := io.ReadAll(bodyReader)
	r.Body.Close()
	if err != nil {
		errMsg := fmt.Sprintf("error reading JSON message: %v", err)
		errCode := http.StatusBadRequest
		http.Error(w, strconv.Itoa(errCode)+" "+errMsg, errCode)
		return
	}

	// HTTP sessions live for exactly one request.
	granted := s.grantCapabilities(TransportHTTP, isAdmin)
	sess := s.sessions.create(TransportHTTP, r.RemoteAddr, granted)
	defer s.terminateSession(sess.ID())

	msg := s.processRequestBody(ctx, body, sess)
	if msg == nil {
		msg = []byte{}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(msg); err != nil {
		log.Errorf("Failed to write marshalled reply: %v", err)
		return
	}

	// Terminate with newline for command line client friendliness.
	if _, err := w.Write([]byte{'\n'}); err != nil {
		log.Errorf("Failed to append terminating newline to reply: %v", err)
	}
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="parity RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// logForwarder provides logic to forward log messages writing to an io.Writer
// to the rpcserver logger.
type logForwarder struct{}

// Write implements the io.Writer interface and forwards the message to the
// active rpcserver logger.
func (logForwarder) Write(p []byte) (int, error) {
	log.Error(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// equalASCIIFold returns true if s is equal to t with ASCII case folding as
// defined in RFC 4790.  This function was lifted and from the gorilla websocket
// code since it's not exported.
func equalASCIIFold(s, t string) bool {
	for s != "" && t != "" {
		sr, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		tr, size := utf8.DecodeRuneInString(t)
		t = t[size:]
		if sr == tr {
			continue
		}
		if 'A' <= sr && sr <= 'Z' {
			sr = sr + 'a' - 'A'
		}
		if 'A' <= tr && tr <= 'Z' {
			tr = tr + 'a' - 'A'
		}
		if sr != tr {
			return false
		}
	}
	return s == t
}

// route sets up the endpoints of the rpc server.
func (s *Server) route(ctx context.Context) *http.Server {
	rpcServeMux := http.NewServeMux()
	httpServer := &http.Server{
		Handler: rpcServeMux,

		// Use the provided context as the parent context for all requests to
		// ensure handlers are able to react to both client disconnects as well
		// as shutdown via the provided context.
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},

		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,

		// Reroute http server error logging through the rpcserver
		// logger.
		ErrorLog: stdlog.New(logForwarder{}, "", 0),
	}
	rpcServeMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		r.Close = true

		// Limit the number of connections to max allowed.
		if s.limitConnections(w, r.RemoteAddr) {
			return
		}

		// Keep track of the number of connected clients.
		s.incrementClients()
		defer s.decrementClients()
		_, isAdmin, err := s.checkAuth(r, true)
		if err != nil {
			jsonAuthFail(w)
			return
		}

		// Read and respond to the request.
		s.jsonRPCRead(r.Context(), w, r, isAdmin)
	})

	// Websocket endpoint.
	rpcServeMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		authenticated, isAdmin, err := s.checkAuth(r, false)
		if err != nil {
			jsonAuthFail(w)
			return
		}

		// Attempt to upgrade the connection to a websocket connection using the
		// default size for read/write buffers and impose a read limit that
		// depends on whether or not the connection is authenticated yet.
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow requests with no origin header set.
				origin := r.Header["Origin"]
				if len(origin) == 0 {
					return true
				}

				// Reject requests with origin headers that are not valid URLs.
				originURL, err := url.Parse(origin[0])
				if err != nil {
					return false
				}

				// Allow local resources on browsers that set the origin header
				// for them.  In particular:
				// - Firefox which sets it to "null"
				// - Chrome which sets it to "file://"
				// - Edge which sets it to "file://"
				if originURL.Scheme == "file" || originURL.Path == "null" {
					return true
				}

				// Strip the port from both the origin and request hosts.
				originHost := originURL.Host
				requestHost := r.Host
				if host, _, err := net.SplitHostPort(originHost); err == nil {
					originHost = host
				}
				if host, _, err := net.SplitHostPort(requestHost); err == nil {
					requestHost = host
				}

				// Reject mismatched hosts.
				return equalASCIIFold(originHost, requestHost)
			},
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			var herr websocket.HandshakeError
			if !errors.As(err, &herr) {
				log.Errorf("Unexpected websocket error: %v", err)
			}
			return
		}
		ws.SetPingHandler(func(payload string) error {
			log.Debugf("ping received: len %d", len(payload))
			log.Tracef("ping payload: %q", payload)
			var netErr net.Error
			err := ws.WriteControl(websocket.PongMessage, []byte(payload),
				time.Now().Add(websocketPongTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) &&
				!(errors.As(err, &netErr) && netErr.Timeout()) {

				log.Errorf("Failed to send pong: %v", err)
				return err
			}
			return nil
		})
		ws.SetPongHandler(func(payload string) error {
			log.Debugf("pong received: len %d", len(payload))
			log.Tracef("pong payload: %q", payload)
			return nil
		})
		if !authenticated {
			ws.SetReadLimit(websocketReadLimitUnauthenticated)
		} else {
			ws.SetReadLimit(websocketReadLimitAuthenticated)
		}
		s.WebsocketHandler(r.Context(), ws, r.RemoteAddr, authenticated,
			isAdmin)
	})
	return httpServer
}

// Run starts the rpc server and its listeners.  It blocks until the provided
// context is cancelled.
func (s *Server) Run(ctx context.Context) {
	log.Trace("Starting RPC server")
	server := s.route(ctx)
	for _, listener := range s.cfg.Listeners {
		s.wg.Add(1)
		go func(listener net.Listener) {
			log.Infof("RPC server listening on %s", listener.Addr())
			server.Serve(listener)
			log.Tracef("RPC listener done for %s", listener.Addr())
			s.wg.Done()
		}(listener)
	}

	if s.cfg.IPCListener != nil {
		s.wg.Add(1)
		go func() {
			s.serveIPC(ctx, s.cfg.IPCListener)
			s.wg.Done()
		}()
	}

	s.wg.Add(1)
	go func() {
		s.confirmQ.Run(ctx)
		s.wg.Done()
	}()

	s.ntfnMgr.Run(ctx)
	err := s.shutdown()
	if err != nil {
		log.Error(err)
		return
	}
}

// Config is a descriptor containing the RPC server configuration.
type Config struct {
	// Listeners defines a slice of listeners for which the RPC server will
	// take ownership of and accept connections.  Since the RPC server takes
	// ownership of these listeners, they will be closed when the RPC server
	// is stopped.
	Listeners []net.Listener

	// IPCListener defines an optional local socket listener.  Connections
	// accepted on it are granted the full capability set.
	IPCListener net.Listener

	// ClientVersion is the string reported by the web3_clientVersion
	// command.
	ClientVersion string

	// AllowedAPIs lists the capability tags the server exposes.  An empty
	// list exposes all of them.
	AllowedAPIs []string

	// Chain defines the chain engine queries for the RPC server to use.
	Chain Chain

	// TxPool defines the transaction submission path for the RPC server
	// to use.
	TxPool TxPool

	// AccountManager defines the key store for the RPC server to use.
	AccountManager AccountManager

	// NetManager defines the peer-to-peer state queries for the RPC
	// server to use.
	NetManager NetManager

	// ConfirmArchive is an optional database resolved confirmation
	// records are archived in so their outcome survives restarts.
	ConfirmArchive *leveldb.DB

	// ConfirmTTL is how long queued signing requests stay pending before
	// the reaper expires them.
	ConfirmTTL time.Duration

	// RPCCallTimeout is the per-call handler timeout enforced at the
	// dispatch boundary.
	RPCCallTimeout time.Duration

	// RPCUser and RPCPass defines the username and password for RPC clients
	// with full access.
	RPCUser string
	RPCPass string

	// RPCLimitUser and RPCLimitPass defines the username and password for
	// RPC clients with limited access.
	RPCLimitUser string
	RPCLimitPass string

	// RPCMaxClients defines the max number of RPC clients for standard
	// connections.
	RPCMaxClients int

	// RPCMaxWebsockets defines the max number of RPC websocket connections.
	RPCMaxWebsockets int

	// RPCMaxConcurrentReqs defines the max number of RPC requests that may
	// be processed concurrently.
	RPCMaxConcurrentReqs int
}

// New returns a new instance of the Server struct.
func New(config *Config) (*Server, error) {
	rpc := Server{
		cfg:                    *config,
		ntfnMgr:                newSubManager(),
		sessions:               newSessionRegistry(),
		confirmQ:               newConfirmQueue(config.ConfirmArchive),
		requestProcessShutdown: make(chan struct{}),
	}
	key := make([]byte, 32)
	rand.Read(key)
	rpc.hmac = hmac.New(sha256.New, key)
	if config.RPCUser != "" && config.RPCPass != "" {
		login := config.RPCUser + ":" + config.RPCPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.authsha[:0], []byte(auth))
	}
	if config.RPCLimitUser != "" && config.RPCLimitPass != "" {
		login := config.RPCLimitUser + ":" + config.RPCLimitPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.limitauthsha[:0], []byte(auth))
	}

	rpc.enabledAPIs = make(map[string]struct{})
	if len(config.AllowedAPIs) == 0 {
		for _, tag := range allCapabilities {
			rpc.enabledAPIs[tag] = struct{}{}
		}
	} else {
		for _, tag := range config.AllowedAPIs {
			rpc.enabledAPIs[tag] = struct{}{}
		}
	}

	return &rpc, nil
}

// SupportedAPIs returns the sorted list of capability tags the server knows
// about.  It is used by configuration validation.
func SupportedAPIs() []string {
	tags := make([]string, len(allCapabilities))
	copy(tags, allCapabilities)
	sort.Strings(tags)
	return tags
}

func init() {
	rpcHandlers = rpcHandlersBeforeInit
}
