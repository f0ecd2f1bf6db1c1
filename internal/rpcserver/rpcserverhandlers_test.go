// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrjson/v4"

	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// mockChain provides a mock chain engine by implementing the Chain interface.
type mockChain struct {
	chainID            uint64
	bestBlockNumber    uint64
	bestBlockNumberErr error
	block              *types.Block
	blockErr           error
	balance            *big.Int
	balanceErr         error
	nonce              uint64
	nonceErr           error
	tx                 *types.Transaction
	txErr              error
	logs               []types.Log
	logsErr            error
	syncStatus         *types.SyncStatus
	gasPrice           *big.Int
	gasPriceErr        error
	gasPriceDelay      time.Duration
}

// ChainID returns the mocked chain identifier.
func (c *mockChain) ChainID() uint64 {
	return c.chainID
}

// BestBlockNumber returns the mocked best block number.
func (c *mockChain) BestBlockNumber() (uint64, error) {
	return c.bestBlockNumber, c.bestBlockNumberErr
}

// BlockByNumber returns the mocked block.
func (c *mockChain) BlockByNumber(_ context.Context, _ uint64) (*types.Block, error) {
	return c.block, c.blockErr
}

// BalanceAt returns the mocked balance.
func (c *mockChain) BalanceAt(_ context.Context, _ string, _ uint64) (*big.Int, error) {
	return c.balance, c.balanceErr
}

// NonceAt returns the mocked nonce.
func (c *mockChain) NonceAt(_ context.Context, _ string, _ uint64) (uint64, error) {
	return c.nonce, c.nonceErr
}

// TransactionByHash returns the mocked transaction.
func (c *mockChain) TransactionByHash(_ context.Context, _ string) (*types.Transaction, error) {
	return c.tx, c.txErr
}

// Logs returns the mocked log entries.
func (c *mockChain) Logs(_ context.Context, _, _ uint64, _ *types.LogFilterArgs) ([]types.Log, error) {
	return c.logs, c.logsErr
}

// SyncStatus returns the mocked sync status.
func (c *mockChain) SyncStatus() *types.SyncStatus {
	return c.syncStatus
}

// GasPrice returns the mocked gas price after the mocked delay.
func (c *mockChain) GasPrice(ctx context.Context) (*big.Int, error) {
	if c.gasPriceDelay > 0 {
		select {
		case <-time.After(c.gasPriceDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.gasPrice, c.gasPriceErr
}

// mockTxPool provides a mock transaction pool by implementing the TxPool
// interface.
type mockTxPool struct {
	submitHash string
	submitErr  error
}

// SubmitTransaction returns the mocked transaction hash.
func (p *mockTxPool) SubmitTransaction(_ context.Context, _ string) (string, error) {
	return p.submitHash, p.submitErr
}

// mockAccountManager provides a mock key store by implementing the
// AccountManager interface.
type mockAccountManager struct {
	accounts       []string
	newAccountAddr string
	newAccountErr  error
	unlockErr      error
	lockErr        error
	signedTx       string
	signedTxHash   string
	signTxErr      error
	signature      string
	signDataErr    error
}

// Accounts returns the mocked account addresses.
func (m *mockAccountManager) Accounts() []string {
	return m.accounts
}

// HasAccount returns whether the address is among the mocked accounts.
func (m *mockAccountManager) HasAccount(address string) bool {
	for _, addr := range m.accounts {
		if addr == address {
			return true
		}
	}
	return false
}

// NewAccount returns the mocked new account address.
func (m *mockAccountManager) NewAccount(_ string) (string, error) {
	return m.newAccountAddr, m.newAccountErr
}

// Unlock returns the mocked unlock error.
func (m *mockAccountManager) Unlock(_, _ string, _ time.Duration) error {
	return m.unlockErr
}

// Lock returns the mocked lock error.
func (m *mockAccountManager) Lock(_ string) error {
	return m.lockErr
}

// SignTransaction returns the mocked signed transaction.
func (m *mockAccountManager) SignTransaction(_ context.Context, _ *types.TransactionArgs) (string, string, error) {
	return m.signedTx, m.signedTxHash, m.signTxErr
}

// SignData returns the mocked signature.
func (m *mockAccountManager) SignData(_ context.Context, _, _ string) (string, error) {
	return m.signature, m.signDataErr
}

// mockNetManager provides mock peer-to-peer state by implementing the
// NetManager interface.
type mockNetManager struct {
	peerCount int
	listening bool
}

// PeerCount returns the mocked number of connected peers.
func (n *mockNetManager) PeerCount() int {
	return n.peerCount
}

// Listening returns the mocked listening state.
func (n *mockNetManager) Listening() bool {
	return n.listening
}

// testTxRecipient is the to address of the canned test transaction.
var testTxRecipient = "0x00000000000000000000000000000000000000ff"

// defaultMockChain returns a mock chain with sane defaults the handler tests
// override as needed.
func defaultMockChain() *mockChain {
	return &mockChain{
		chainID:         17,
		bestBlockNumber: 10,
		block: &types.Block{
			Number:     "0xa",
			Hash:       "0xb10c",
			ParentHash: "0xb10b",
			Timestamp:  "0x68a9c0de",
			Miner:      "0x0000000000000000000000000000000000000000",
			Transactions: []json.RawMessage{
				json.RawMessage(`"0x7a57"`),
			},
		},
		balance:  new(big.Int).SetUint64(1000000000000000000),
		nonce:    42,
		tx:       defaultMockTx(),
		gasPrice: big.NewInt(1000000000),
	}
}

// defaultMockTx returns the canned transaction the mock chain serves.
func defaultMockTx() *types.Transaction {
	return &types.Transaction{
		Hash:     "0x7a57",
		From:     "0x00000000000000000000000000000000000000aa",
		To:       &testTxRecipient,
		Value:    "0xde0b6b3a7640000",
		Nonce:    "0x0",
		GasPrice: "0x3b9aca00",
		Input:    "0x",
	}
}

// defaultMockAccountManager returns a mock account manager with one unlocked
// account.
func defaultMockAccountManager() *mockAccountManager {
	return &mockAccountManager{
		accounts:       []string{"0x00000000000000000000000000000000000000aa"},
		newAccountAddr: "0x00000000000000000000000000000000000000bb",
		signedTx:       "0xf86c0a",
		signedTxHash:   "0x5167",
		signature:      "0x515a",
	}
}

// testServer returns an RPC server backed by the given mocks, along with a
// fully capable session for invoking handlers directly.
func testServer(t *testing.T, chain *mockChain, pool *mockTxPool, am *mockAccountManager, nm *mockNetManager) (*Server, *Session) {
	t.Helper()

	if chain == nil {
		chain = defaultMockChain()
	}
	if pool == nil {
		pool = &mockTxPool{submitHash: "0x5167"}
	}
	if am == nil {
		am = defaultMockAccountManager()
	}
	if nm == nil {
		nm = &mockNetManager{peerCount: 5, listening: true}
	}
	s, err := New(&Config{
		ClientVersion:  "Parity//vtest",
		Chain:          chain,
		TxPool:         pool,
		AccountManager: am,
		NetManager:     nm,
	})
	if err != nil {
		t.Fatalf("unexpected error creating server: %v", err)
	}
	sess := s.sessions.create(TransportIPC, "test",
		capabilitySet(allCapabilities...))
	return s, sess
}

// mustMarshal marshals the value or panics.  It exists so expected results
// can be built inline in test tables.
func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// TestHandlers exercises the command handlers with mocked backends.
func TestHandlers(t *testing.T) {
	t.Parallel()

	fullTxBlock := &types.Block{
		Number:     "0xa",
		Hash:       "0xb10c",
		ParentHash: "0xb10b",
		Timestamp:  "0x68a9c0de",
		Miner:      "0x0000000000000000000000000000000000000000",
		Transactions: []json.RawMessage{
			mustMarshal(defaultMockTx()),
		},
	}

	tests := []struct {
		name    string
		handler commandHandler
		cmd     interface{}
		chain   *mockChain
		pool    *mockTxPool
		am      *mockAccountManager
		nm      *mockNetManager
		result  interface{}
		wantErr bool
		errCode dcrjson.RPCErrorCode
	}{{
		name:    "handleClientVersion: ok",
		handler: handleClientVersion,
		cmd:     &types.ClientVersionCmd{},
		result:  "Parity//vtest",
	}, {
		name:    "handleNetVersion: ok",
		handler: handleNetVersion,
		cmd:     &types.NetVersionCmd{},
		result:  "17",
	}, {
		name:    "handlePeerCount: ok",
		handler: handlePeerCount,
		cmd:     &types.PeerCountCmd{},
		result:  "0x5",
	}, {
		name:    "handleNetListening: ok",
		handler: handleNetListening,
		cmd:     &types.NetListeningCmd{},
		result:  true,
	}, {
		name:    "handleBlockNumber: ok",
		handler: handleBlockNumber,
		cmd:     &types.BlockNumberCmd{},
		result:  "0xa",
	}, {
		name:    "handleBlockNumber: engine unavailable",
		handler: handleBlockNumber,
		cmd:     &types.BlockNumberCmd{},
		chain: func() *mockChain {
			chain := defaultMockChain()
			chain.bestBlockNumberErr = ErrEngineUnavailable
			return chain
		}(),
		wantErr: true,
		errCode: types.ErrRPCEngineUnavailable,
	}, {
		name:    "handleGetBalance: ok",
		handler: handleGetBalance,
		cmd: &types.GetBalanceCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Block:   dcrjson.String("latest"),
		},
		result: "0xde0b6b3a7640000",
	}, {
		name:    "handleGetBalance: invalid block tag",
		handler: handleGetBalance,
		cmd: &types.GetBalanceCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Block:   dcrjson.String("12"),
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetBalance: unknown block",
		handler: handleGetBalance,
		cmd: &types.GetBalanceCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Block:   dcrjson.String("0x64"),
		},
		chain: func() *mockChain {
			chain := defaultMockChain()
			chain.balanceErr = ErrBlockNotFound
			return chain
		}(),
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleGetTransactionCount: ok",
		handler: handleGetTransactionCount,
		cmd: &types.GetTransactionCountCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Block:   dcrjson.String("latest"),
		},
		result: "0x2a",
	}, {
		name:    "handleGetBlockByNumber: ok with hashes",
		handler: handleGetBlockByNumber,
		cmd: &types.GetBlockByNumberCmd{
			Block:   "0xa",
			FullTxs: dcrjson.Bool(false),
		},
		result: defaultMockChain().block,
	}, {
		name:    "handleGetBlockByNumber: ok with full transactions",
		handler: handleGetBlockByNumber,
		cmd: &types.GetBlockByNumberCmd{
			Block:   "0xa",
			FullTxs: dcrjson.Bool(true),
		},
		result: fullTxBlock,
	}, {
		name:    "handleGetBlockByNumber: unknown block is null",
		handler: handleGetBlockByNumber,
		cmd: &types.GetBlockByNumberCmd{
			Block:   "0x64",
			FullTxs: dcrjson.Bool(false),
		},
		chain: func() *mockChain {
			chain := defaultMockChain()
			chain.blockErr = ErrBlockNotFound
			return chain
		}(),
		result: nil,
	}, {
		name:    "handleGetTransactionByHash: ok",
		handler: handleGetTransactionByHash,
		cmd:     &types.GetTransactionByHashCmd{Hash: "0x7a57"},
		result:  defaultMockTx(),
	}, {
		name:    "handleGetTransactionByHash: unknown hash is null",
		handler: handleGetTransactionByHash,
		cmd:     &types.GetTransactionByHashCmd{Hash: "0xdead"},
		chain: func() *mockChain {
			chain := defaultMockChain()
			chain.txErr = ErrTxNotFound
			return chain
		}(),
		result: nil,
	}, {
		name:    "handleGetLogs: ok with empty result",
		handler: handleGetLogs,
		cmd:     &types.GetLogsCmd{},
		result:  []types.Log{},
	}, {
		name:    "handleGetLogs: from after to",
		handler: handleGetLogs,
		cmd: &types.GetLogsCmd{
			Filter: types.LogFilterArgs{
				FromBlock: dcrjson.String("0x5"),
				ToBlock:   dcrjson.String("0x1"),
			},
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleSyncing: synced",
		handler: handleSyncing,
		cmd:     &types.SyncingCmd{},
		result:  false,
	}, {
		name:    "handleSyncing: catching up",
		handler: handleSyncing,
		cmd:     &types.SyncingCmd{},
		chain: func() *mockChain {
			chain := defaultMockChain()
			chain.syncStatus = &types.SyncStatus{
				StartingBlock: "0x0",
				CurrentBlock:  "0x5",
				HighestBlock:  "0xa",
			}
			return chain
		}(),
		result: &types.SyncStatus{
			StartingBlock: "0x0",
			CurrentBlock:  "0x5",
			HighestBlock:  "0xa",
		},
	}, {
		name:    "handleGasPrice: ok",
		handler: handleGasPrice,
		cmd:     &types.GasPriceCmd{},
		result:  "0x3b9aca00",
	}, {
		name:    "handleSendRawTransaction: ok",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{Data: "0xdeadbeef"},
		result:  "0x5167",
	}, {
		name:    "handleSendRawTransaction: missing hex prefix",
		handler: handleSendRawTransaction,
		cmd:     &types.SendRawTransactionCmd{Data: "deadbeef"},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleAccounts: ok",
		handler: handleAccounts,
		cmd:     &types.AccountsCmd{},
		result:  []string{"0x00000000000000000000000000000000000000aa"},
	}, {
		name:    "handleNewAccount: ok",
		handler: handleNewAccount,
		cmd:     &types.NewAccountCmd{Passphrase: "hunter2"},
		result:  "0x00000000000000000000000000000000000000bb",
	}, {
		name:    "handleUnlockAccount: ok",
		handler: handleUnlockAccount,
		cmd: &types.UnlockAccountCmd{
			Address:    "0x00000000000000000000000000000000000000aa",
			Passphrase: "hunter2",
			Duration:   dcrjson.Uint64(300),
		},
		result: true,
	}, {
		name:    "handleUnlockAccount: unknown account",
		handler: handleUnlockAccount,
		cmd: &types.UnlockAccountCmd{
			Address:    "0x00000000000000000000000000000000000000cc",
			Passphrase: "hunter2",
			Duration:   dcrjson.Uint64(300),
		},
		am: func() *mockAccountManager {
			am := defaultMockAccountManager()
			am.unlockErr = ErrAccountNotFound
			return am
		}(),
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleLockAccount: ok",
		handler: handleLockAccount,
		cmd: &types.LockAccountCmd{
			Address: "0x00000000000000000000000000000000000000aa",
		},
		result: true,
	}, {
		name:    "handleSign: ok",
		handler: handleSign,
		cmd: &types.SignCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Data:    "0x68656c6c6f",
		},
		result: "0x515a",
	}, {
		name:    "handleSign: unknown account",
		handler: handleSign,
		cmd: &types.SignCmd{
			Address: "0x00000000000000000000000000000000000000cc",
			Data:    "0x68656c6c6f",
		},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleSign: locked account queues confirmation",
		handler: handleSign,
		cmd: &types.SignCmd{
			Address: "0x00000000000000000000000000000000000000aa",
			Data:    "0x68656c6c6f",
		},
		am: func() *mockAccountManager {
			am := defaultMockAccountManager()
			am.signDataErr = ErrAccountLocked
			return am
		}(),
		result: &types.AsyncPendingResult{
			Status:    types.StatusPending,
			RequestID: 1,
		},
	}, {
		name:    "handleSendTransaction: ok",
		handler: handleSendTransaction,
		cmd: &types.SendTransactionCmd{
			Tx: types.TransactionArgs{
				From: "0x00000000000000000000000000000000000000aa",
				To:   &testTxRecipient,
			},
		},
		result: "0x5167",
	}, {
		name:    "handleSendTransaction: missing from address",
		handler: handleSendTransaction,
		cmd:     &types.SendTransactionCmd{},
		wantErr: true,
		errCode: dcrjson.ErrRPCInvalidParameter,
	}, {
		name:    "handleSendTransaction: locked account queues confirmation",
		handler: handleSendTransaction,
		cmd: &types.SendTransactionCmd{
			Tx: types.TransactionArgs{
				From: "0x00000000000000000000000000000000000000aa",
				To:   &testTxRecipient,
			},
		},
		am: func() *mockAccountManager {
			am := defaultMockAccountManager()
			am.signTxErr = ErrAccountLocked
			return am
		}(),
		result: &types.AsyncPendingResult{
			Status:    types.StatusPending,
			RequestID: 1,
		},
	}, {
		name:    "handleRequestsToConfirm: empty queue",
		handler: handleRequestsToConfirm,
		cmd:     &types.RequestsToConfirmCmd{},
		result:  []types.ConfirmationRequest{},
	}, {
		name:    "handleRejectRequest: unknown id",
		handler: handleRejectRequest,
		cmd:     &types.RejectRequestCmd{ID: 99},
		wantErr: true,
		errCode: types.ErrRPCRequestNotFound,
	}, {
		name:    "handleCheckRequest: unknown id",
		handler: handleCheckRequest,
		cmd:     &types.CheckRequestCmd{ID: 99},
		wantErr: true,
		errCode: types.ErrRPCRequestNotFound,
	}, {
		name:    "handleNodeStop: ok",
		handler: handleNodeStop,
		cmd:     &types.NodeStopCmd{},
		result:  "parity stopping.",
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			s, sess := testServer(t, test.chain, test.pool, test.am, test.nm)
			result, err := test.handler(context.Background(), s, sess, test.cmd)
			if test.wantErr {
				var rpcErr *dcrjson.RPCError
				if !errors.As(err, &rpcErr) {
					t.Fatalf("expected an RPC error, got %v", err)
				}
				if rpcErr.Code != test.errCode {
					t.Fatalf("mismatched error code -- got %v, want %v",
						rpcErr.Code, test.errCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if test.result == nil {
				if result != nil {
					t.Fatalf("expected null result, got %s",
						spew.Sdump(result))
				}
				return
			}
			if !reflect.DeepEqual(result, test.result) {
				t.Fatalf("mismatched result:\ngot: %s\nwant: %s",
					spew.Sdump(result), spew.Sdump(test.result))
			}
		})
	}
}

// TestHandleModules ensures rpc_modules reports every exposed API group with
// the expected version string.
func TestHandleModules(t *testing.T) {
	t.Parallel()

	s, sess := testServer(t, nil, nil, nil, nil)
	result, err := handleModules(context.Background(), s, sess, &types.ModulesCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	modules, ok := result.(map[string]string)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if len(modules) != len(allCapabilities) {
		t.Fatalf("mismatched module count -- got %d, want %d", len(modules),
			len(allCapabilities))
	}
	for _, tag := range allCapabilities {
		if ver := modules[tag]; ver != "1.0" {
			t.Errorf("module %q: mismatched version -- got %q, want %q", tag,
				ver, "1.0")
		}
	}
}

// TestHandleNodeVersion ensures node_version reports the server and API
// semantic versions.
func TestHandleNodeVersion(t *testing.T) {
	t.Parallel()

	s, sess := testServer(t, nil, nil, nil, nil)
	result, err := handleNodeVersion(context.Background(), s, sess,
		&types.NodeVersionCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	versions, ok := result.(map[string]types.VersionResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	api, ok := versions["parityjsonrpcapi"]
	if !ok {
		t.Fatal("missing parityjsonrpcapi version entry")
	}
	if api.VersionString != jsonrpcSemverString {
		t.Errorf("mismatched API version -- got %q, want %q",
			api.VersionString, jsonrpcSemverString)
	}
	if _, ok := versions["parity"]; !ok {
		t.Fatal("missing parity version entry")
	}
}

// TestDecodeBlockTag ensures the block parameter tags and hex quantities are
// decoded per the API conventions.
func TestDecodeBlockTag(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t, nil, nil, nil, nil)
	tests := []struct {
		tag     string
		number  uint64
		wantErr bool
	}{
		{tag: "latest", number: 10},
		{tag: "pending", number: 10},
		{tag: "earliest", number: 0},
		{tag: "0x0", number: 0},
		{tag: "0xa", number: 10},
		{tag: "0xff", number: 255},
		{tag: "10", wantErr: true},
		{tag: "0xzz", wantErr: true},
		{tag: "", wantErr: true},
	}
	for _, test := range tests {
		number, err := s.decodeBlockTag(test.tag)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: did not receive expected error", test.tag)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.tag, err)
			continue
		}
		if number != test.number {
			t.Errorf("%q: mismatched number -- got %d, want %d", test.tag,
				number, test.number)
		}
	}
}

// TestProcessRequestDispatch ensures the dispatch pipeline enforces the
// session capability policy, the transport constraint, and the JSON-RPC
// structural rules before any handler runs.
func TestProcessRequestDispatch(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t, nil, nil, nil, nil)
	ctx := context.Background()

	// errCode unmarshals the error code from a marshalled response.
	errCode := func(t *testing.T, msg []byte) dcrjson.RPCErrorCode {
		t.Helper()
		var resp struct {
			Error *dcrjson.RPCError `json:"error"`
		}
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("malformed response: %v", err)
		}
		if resp.Error == nil {
			t.Fatalf("expected an error response, got %s", msg)
		}
		return resp.Error.Code
	}

	limited := s.sessions.create(TransportHTTP, "test",
		s.grantCapabilities(TransportHTTP, false))
	admin := s.sessions.create(TransportHTTP, "test",
		s.grantCapabilities(TransportHTTP, true))
	ipc := s.sessions.create(TransportIPC, "test",
		s.grantCapabilities(TransportIPC, false))

	// A limited session must not reach privileged methods.
	msg := s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "node_stop", ID: 1,
	}, limited)
	if code := errCode(t, msg); code != types.ErrRPCUnauthorized {
		t.Fatalf("mismatched code for limited node_stop -- got %v, want %v",
			code, types.ErrRPCUnauthorized)
	}

	// The confirming role is reserved for local socket sessions, even for
	// authenticated admins.
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "signer_requestsToConfirm", ID: 1,
	}, admin)
	if code := errCode(t, msg); code != types.ErrRPCUnauthorized {
		t.Fatalf("mismatched code for admin confirm -- got %v, want %v",
			code, types.ErrRPCUnauthorized)
	}
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "signer_requestsToConfirm", ID: 1,
	}, ipc)
	var okResp struct {
		Error *dcrjson.RPCError `json:"error"`
	}
	if err := json.Unmarshal(msg, &okResp); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if okResp.Error != nil {
		t.Fatalf("unexpected error for ipc confirm: %v", okResp.Error)
	}

	// Subscriptions require a duplex transport.
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "eth_subscribe",
		Params: []json.RawMessage{json.RawMessage(`"newHeads"`)}, ID: 1,
	}, admin)
	if code := errCode(t, msg); code != types.ErrRPCUnsupportedOnTransport {
		t.Fatalf("mismatched code for http subscribe -- got %v, want %v",
			code, types.ErrRPCUnsupportedOnTransport)
	}

	// Requests with no id are notifications and get no response.
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "eth_blockNumber",
	}, ipc)
	if msg != nil {
		t.Fatalf("expected no response for notification, got %s", msg)
	}

	// Requests with no method are malformed.
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", ID: 1,
	}, ipc)
	if code := errCode(t, msg); code != dcrjson.ErrRPCInvalidRequest.Code {
		t.Fatalf("mismatched code for malformed request -- got %v, want %v",
			code, dcrjson.ErrRPCInvalidRequest.Code)
	}

	// Unknown methods report method not found.
	msg = s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "eth_bogus", ID: 1,
	}, ipc)
	if code := errCode(t, msg); code != dcrjson.ErrRPCMethodNotFound.Code {
		t.Fatalf("mismatched code for unknown method -- got %v, want %v",
			code, dcrjson.ErrRPCMethodNotFound.Code)
	}
}

// TestUnauthorizedSkipsHandler ensures a capability rejection short circuits
// dispatch before the method handler can run.  The node_stop table entry is
// swapped for a counting wrapper, so this test must not run in parallel.
func TestUnauthorizedSkipsHandler(t *testing.T) {
	s, _ := testServer(t, nil, nil, nil, nil)
	ctx := context.Background()

	var calls atomic.Uint32
	orig := rpcHandlers["node_stop"]
	counting := orig
	counting.handler = func(ctx context.Context, s *Server, sess *Session, params interface{}) (interface{}, error) {
		calls.Add(1)
		return orig.handler(ctx, s, sess, params)
	}
	rpcHandlers["node_stop"] = counting
	defer func() { rpcHandlers["node_stop"] = orig }()

	limited := s.sessions.create(TransportHTTP, "test",
		s.grantCapabilities(TransportHTTP, false))
	msg := s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "node_stop", ID: 1,
	}, limited)
	var resp struct {
		Error *dcrjson.RPCError `json:"error"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != types.ErrRPCUnauthorized {
		t.Fatalf("mismatched unauthorized response: %s", msg)
	}
	if calls.Load() != 0 {
		t.Fatalf("handler ran %d times for an unauthorized call", calls.Load())
	}

	// The same request from a capable session reaches the handler.
	admin := s.sessions.create(TransportIPC, "test",
		s.grantCapabilities(TransportIPC, true))
	s.processRequest(ctx, &dcrjson.Request{
		Jsonrpc: "2.0", Method: "node_stop", ID: 2,
	}, admin)
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times for an authorized call, want 1",
			calls.Load())
	}
}

// TestProcessRequestBodyBatch ensures batched request bodies produce batched
// responses and structural errors per the JSON-RPC rules.
func TestProcessRequestBodyBatch(t *testing.T) {
	t.Parallel()

	s, sess := testServer(t, nil, nil, nil, nil)
	ctx := context.Background()

	// An empty batch is invalid.
	msg := s.processRequestBody(ctx, []byte(`[]`), sess)
	var resp struct {
		Error *dcrjson.RPCError `json:"error"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInvalidRequest.Code {
		t.Fatalf("mismatched empty batch error: %v", resp.Error)
	}

	// A batch of two valid requests produces two responses in order.
	body := []byte(`[` +
		`{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1},` +
		`{"jsonrpc":"2.0","method":"net_version","params":[],"id":2}]`)
	msg = s.processRequestBody(ctx, body, sess)
	var batch []struct {
		Result json.RawMessage   `json:"result"`
		Error  *dcrjson.RPCError `json:"error"`
		ID     int               `json:"id"`
	}
	if err := json.Unmarshal(msg, &batch); err != nil {
		t.Fatalf("malformed batch response %s: %v", msg, err)
	}
	if len(batch) != 2 {
		t.Fatalf("mismatched batch size -- got %d, want 2", len(batch))
	}
	if batch[0].ID != 1 || batch[1].ID != 2 {
		t.Fatalf("batch responses out of order: %s", msg)
	}
	if string(batch[0].Result) != `"0xa"` {
		t.Fatalf("mismatched first result -- got %s, want %q",
			batch[0].Result, `"0xa"`)
	}
	if string(batch[1].Result) != `"17"` {
		t.Fatalf("mismatched second result -- got %s, want %q",
			batch[1].Result, `"17"`)
	}

	// A batch consisting solely of notifications gets no response.
	body = []byte(`[{"jsonrpc":"2.0","method":"eth_blockNumber","params":[]}]`)
	msg = s.processRequestBody(ctx, body, sess)
	if msg != nil {
		t.Fatalf("expected no response for notification batch, got %s", msg)
	}

	// A malformed body reports a parse error.
	msg = s.processRequestBody(ctx, []byte(`{"jsonrpc":`), sess)
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCParse.Code {
		t.Fatalf("mismatched parse error: %v", resp.Error)
	}
}

// TestStandardCmdResultTimeout ensures handlers that exceed the per-call
// timeout produce the dedicated timeout error.
func TestStandardCmdResultTimeout(t *testing.T) {
	t.Parallel()

	chain := defaultMockChain()
	chain.gasPriceDelay = time.Second
	s, sess := testServer(t, chain, nil, nil, nil)
	s.cfg.RPCCallTimeout = 10 * time.Millisecond

	_, err := s.standardCmdResult(context.Background(), sess, &parsedRPCCmd{
		jsonrpc: "2.0",
		method:  "eth_gasPrice",
		params:  &types.GasPriceCmd{},
	})
	var rpcErr *dcrjson.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected an RPC error, got %v", err)
	}
	if rpcErr.Code != types.ErrRPCTimeout {
		t.Fatalf("mismatched error code -- got %v, want %v", rpcErr.Code,
			types.ErrRPCTimeout)
	}
}

// TestSanitizeError ensures raw handler error detail only reaches trusted
// sessions.
func TestSanitizeError(t *testing.T) {
	t.Parallel()

	s, _ := testServer(t, nil, nil, nil, nil)
	untrusted := s.sessions.create(TransportHTTP, "test",
		s.grantCapabilities(TransportHTTP, false))
	trusted := s.sessions.create(TransportIPC, "test",
		s.grantCapabilities(TransportIPC, false))

	rawErr := errors.New("leveldb: disk corrupted at block 5")

	got := s.sanitizeError(untrusted, rawErr)
	var rpcErr *dcrjson.RPCError
	if !errors.As(got, &rpcErr) {
		t.Fatalf("expected an RPC error, got %v", got)
	}
	if rpcErr.Message != "internal error" {
		t.Fatalf("raw error detail leaked to untrusted session: %v", rpcErr)
	}

	if got := s.sanitizeError(trusted, rawErr); !errors.Is(got, rawErr) {
		t.Fatalf("trusted session error was rewritten: %v", got)
	}

	// Structured RPC errors pass through for everyone.
	structured := rpcInvalidError("bad block tag")
	if got := s.sanitizeError(untrusted, structured); got != error(structured) {
		t.Fatalf("structured error was rewritten: %v", got)
	}
}

// TestConfirmationFlowThroughHandlers exercises the full deferral round trip:
// a locked signing request parks in the queue, is listed, confirmed, executes
// its side effect, and its outcome remains queryable.
func TestConfirmationFlowThroughHandlers(t *testing.T) {
	t.Parallel()

	am := defaultMockAccountManager()
	am.signTxErr = ErrAccountLocked
	s, sess := testServer(t, nil, nil, am, nil)
	ctx := context.Background()

	// The locked account defers the send into the queue.
	result, err := handleSendTransaction(ctx, s, sess, &types.SendTransactionCmd{
		Tx: types.TransactionArgs{
			From: "0x00000000000000000000000000000000000000aa",
			To:   &testTxRecipient,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, ok := result.(*types.AsyncPendingResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}

	// The queued request is visible to the confirming actor.
	result, err = handleRequestsToConfirm(ctx, s, sess, &types.RequestsToConfirmCmd{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reqs := result.([]types.ConfirmationRequest)
	if len(reqs) != 1 || reqs[0].ID != pending.RequestID {
		t.Fatalf("queued request not listed: %s", spew.Sdump(reqs))
	}
	if reqs[0].Method != "eth_sendTransaction" {
		t.Fatalf("mismatched queued method -- got %q", reqs[0].Method)
	}

	// Unlock the key and confirm.  The side effect executes and returns the
	// transaction hash.
	am.signTxErr = nil
	result, err = handleConfirmRequest(ctx, s, sess, &types.ConfirmRequestCmd{
		ID: pending.RequestID,
	})
	if err != nil {
		t.Fatalf("unexpected error confirming: %v", err)
	}
	if result != "0x5167" {
		t.Fatalf("mismatched confirm result -- got %v, want %q", result,
			"0x5167")
	}

	// A second resolution attempt loses.
	_, err = handleConfirmRequest(ctx, s, sess, &types.ConfirmRequestCmd{
		ID: pending.RequestID,
	})
	var rpcErr *dcrjson.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != types.ErrRPCAlreadyResolved {
		t.Fatalf("mismatched error for repeat confirm: %v", err)
	}

	// The outcome remains queryable by request id.
	result, err = handleCheckRequest(ctx, s, sess, &types.CheckRequestCmd{
		ID: pending.RequestID,
	})
	if err != nil {
		t.Fatalf("unexpected error checking: %v", err)
	}
	check := result.(*types.CheckRequestResult)
	if check.Status != types.StatusConfirmed {
		t.Fatalf("mismatched status -- got %q, want %q", check.Status,
			types.StatusConfirmed)
	}
	if string(check.Result) != `"0x5167"` {
		t.Fatalf("mismatched archived result -- got %s", check.Result)
	}
}
