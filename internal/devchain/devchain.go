// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package devchain implements a self-contained instant-seal chain engine
// for development use.  It maintains balances, nonces and a pending pool in
// memory, seals a block on a fixed interval whenever transactions are
// pending, and feeds the resulting events to a registered notifier.
//
// No real cryptography is involved.  Signing produces a deterministic digest
// over the transaction payload, which keeps the development loop fast while
// still exercising every code path of the RPC access layer.
package devchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/XertroV/parity/internal/rpcserver"
	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

const (
	// defaultChainID is the chain identifier used when the configuration
	// does not provide one.
	defaultChainID = 17

	// defaultSealInterval is how often the engine seals pending
	// transactions into a block when the configuration does not provide
	// an interval.
	defaultSealInterval = time.Second

	// devAccountBalance is the balance every newly created development
	// account is funded with.
	devAccountBalance = "0x33b2e3c9fd0803ce8000000" // 10^9 * 10^18

	// transferTopic is the topic every synthetic transfer log entry is
	// tagged with so log filters have something realistic to match on.
	transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

// zeroAddress is the miner reported for sealed blocks.
var zeroAddress = "0x" + strings.Repeat("0", 40)

// account is a single managed development key.
type account struct {
	address    string
	passphrase string

	// Zero time means locked.  The indefinite flag keeps the account
	// unlocked until an explicit lock.
	unlockedUntil time.Time
	indefinite    bool
}

// unlocked returns whether the account may sign at the given time.
func (a *account) unlocked(now time.Time) bool {
	return a.indefinite || (!a.unlockedUntil.IsZero() && now.Before(a.unlockedUntil))
}

// Notifier is the callback interface the engine pushes chain events through.
type Notifier interface {
	// NotifyBlockConnected is invoked with every sealed block and the
	// logs its transactions produced.
	NotifyBlockConnected(block *types.Block, logs []types.Log)

	// NotifyNewTransaction is invoked with the hash of every transaction
	// accepted into the pending pool.
	NotifyNewTransaction(txHash string)

	// NotifySyncState is invoked when the sync state changes.  A nil
	// status means the engine is fully synced.
	NotifySyncState(status *types.SyncStatus)
}

// Config holds the tunables for a development engine.
type Config struct {
	// ChainID is the chain identifier reported by net_version.
	ChainID uint64

	// SealInterval is how often pending transactions are sealed into a
	// block.
	SealInterval time.Duration
}

// Engine is an in-memory chain engine suitable for development.  It
// implements the Chain, TxPool, AccountManager and NetManager contracts of
// the RPC server.
//
// All methods are safe for concurrent access.
type Engine struct {
	chainID  uint64
	interval time.Duration
	notifier Notifier

	mtx         sync.Mutex
	blocks      []*types.Block
	txs         map[string]*types.Transaction
	logsByBlock map[uint64][]types.Log
	balances    map[string]*big.Int
	nonces      map[string]uint64
	pending     []*types.Transaction
	accounts    map[string]*account
	gasPrice    *big.Int
}

// New returns a development engine seeded with a genesis block and one
// prefunded account with an empty passphrase that stays unlocked until it is
// explicitly locked.
func New(cfg *Config) *Engine {
	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = defaultChainID
	}
	interval := cfg.SealInterval
	if interval <= 0 {
		interval = defaultSealInterval
	}

	e := &Engine{
		chainID:     chainID,
		interval:    interval,
		txs:         make(map[string]*types.Transaction),
		logsByBlock: make(map[uint64][]types.Log),
		balances:    make(map[string]*big.Int),
		nonces:      make(map[string]uint64),
		accounts:    make(map[string]*account),
		gasPrice:    big.NewInt(1e9),
	}

	genesis := &types.Block{
		Number:       "0x0",
		Hash:         hashHex("genesis", strconv.FormatUint(chainID, 10)),
		ParentHash:   "0x" + strings.Repeat("0", 64),
		Timestamp:    "0x" + strconv.FormatInt(time.Now().Unix(), 16),
		Miner:        zeroAddress,
		Transactions: []json.RawMessage{},
	}
	e.blocks = append(e.blocks, genesis)

	// The prefunded development account.
	addr := newAddress()
	e.accounts[addr] = &account{
		address:    addr,
		passphrase: "",
		indefinite: true,
	}
	e.fund(addr)
	log.Infof("Development account %s created and unlocked", addr)

	return e
}

// SetNotifier registers the sink for chain events.  It must be called before
// Run.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Run seals pending transactions on the configured interval until the
// provided context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Debugf("Development engine sealing every %v on chain %d", e.interval,
		e.chainID)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.sealBlock()
		case <-ctx.Done():
			log.Debug("Development engine done")
			return
		}
	}
}

// sealBlock moves the pending pool into a new block, applies the balance and
// nonce changes, and notifies the registered sink.  Nothing happens when no
// transactions are pending.
func (e *Engine) sealBlock() {
	e.mtx.Lock()
	if len(e.pending) == 0 {
		e.mtx.Unlock()
		return
	}

	parent := e.blocks[len(e.blocks)-1]
	number := uint64(len(e.blocks))
	numberHex := "0x" + strconv.FormatUint(number, 16)
	blockHash := hashHex("block", parent.Hash, strconv.FormatUint(number, 10))

	txHashes := make([]json.RawMessage, 0, len(e.pending))
	logs := make([]types.Log, 0, len(e.pending))
	for i, tx := range e.pending {
		tx.BlockHash = &blockHash
		tx.BlockNumber = &numberHex
		e.txs[tx.Hash] = tx

		rawHash, _ := json.Marshal(tx.Hash)
		txHashes = append(txHashes, rawHash)

		e.applyTransfer(tx)
		logs = append(logs, e.transferLog(tx, blockHash, numberHex, i))
	}
	e.pending = nil

	block := &types.Block{
		Number:       numberHex,
		Hash:         blockHash,
		ParentHash:   parent.Hash,
		Timestamp:    "0x" + strconv.FormatInt(time.Now().Unix(), 16),
		Miner:        zeroAddress,
		Transactions: txHashes,
	}
	e.blocks = append(e.blocks, block)
	e.logsByBlock[number] = logs
	notifier := e.notifier
	e.mtx.Unlock()

	log.Debugf("Sealed block %d (%s) with %d transactions", number,
		blockHash, len(txHashes))
	if notifier != nil {
		notifier.NotifyBlockConnected(block, logs)
	}
}

// applyTransfer debits the sender and credits the recipient.  Development
// balances are allowed to go negative rather than rejecting the transfer so
// experimenting stays frictionless.
func (e *Engine) applyTransfer(tx *types.Transaction) {
	value, ok := new(big.Int).SetString(strings.TrimPrefix(tx.Value, "0x"), 16)
	if !ok {
		value = new(big.Int)
	}
	from := strings.ToLower(tx.From)
	e.balance(from).Sub(e.balance(from), value)
	e.nonces[from]++
	if tx.To != nil {
		to := strings.ToLower(*tx.To)
		e.balance(to).Add(e.balance(to), value)
	}
}

// transferLog synthesizes a transfer-style log entry for a sealed
// transaction.
func (e *Engine) transferLog(tx *types.Transaction, blockHash, numberHex string, index int) types.Log {
	to := zeroAddress
	if tx.To != nil {
		to = *tx.To
	}
	return types.Log{
		Address:     to,
		Topics:      []string{transferTopic, tx.From, to},
		Data:        tx.Value,
		BlockNumber: numberHex,
		BlockHash:   blockHash,
		TxHash:      tx.Hash,
		LogIndex:    "0x" + strconv.FormatInt(int64(index), 16),
	}
}

// balance returns the mutable balance entry for the address, creating a zero
// entry on first touch.
func (e *Engine) balance(address string) *big.Int {
	b, ok := e.balances[address]
	if !ok {
		b = new(big.Int)
		e.balances[address] = b
	}
	return b
}

// fund credits the address with the development account allowance.
func (e *Engine) fund(address string) {
	allowance, _ := new(big.Int).SetString(
		strings.TrimPrefix(devAccountBalance, "0x"), 16)
	e.balance(strings.ToLower(address)).Set(allowance)
}

// ChainID returns the identifier of the chain the engine executes.
func (e *Engine) ChainID() uint64 {
	return e.chainID
}

// BestBlockNumber returns the number of the most recently sealed block.
func (e *Engine) BestBlockNumber() (uint64, error) {
	e.mtx.Lock()
	best := uint64(len(e.blocks) - 1)
	e.mtx.Unlock()
	return best, nil
}

// BlockByNumber returns the block at the given height.
func (e *Engine) BlockByNumber(_ context.Context, number uint64) (*types.Block, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if number >= uint64(len(e.blocks)) {
		return nil, rpcserver.ErrBlockNotFound
	}

	// Return a copy so callers can rewrite the transaction list without
	// corrupting chain state.
	block := *e.blocks[number]
	block.Transactions = append([]json.RawMessage(nil), block.Transactions...)
	return &block, nil
}

// BalanceAt returns the balance of the account.  The development engine does
// not keep historical state, so every height reports the current balance.
func (e *Engine) BalanceAt(_ context.Context, address string, number uint64) (*big.Int, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if number >= uint64(len(e.blocks)) {
		return nil, rpcserver.ErrBlockNotFound
	}
	return new(big.Int).Set(e.balance(strings.ToLower(address))), nil
}

// NonceAt returns the number of transactions sent from the account.  The
// development engine does not keep historical state, so every height reports
// the current nonce.
func (e *Engine) NonceAt(_ context.Context, address string, number uint64) (uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if number >= uint64(len(e.blocks)) {
		return 0, rpcserver.ErrBlockNotFound
	}
	return e.nonces[strings.ToLower(address)], nil
}

// TransactionByHash returns the transaction with the given hash from either
// the chain or the pending pool.
func (e *Engine) TransactionByHash(_ context.Context, hash string) (*types.Transaction, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if tx, ok := e.txs[hash]; ok {
		txCopy := *tx
		return &txCopy, nil
	}
	for _, tx := range e.pending {
		if tx.Hash == hash {
			txCopy := *tx
			return &txCopy, nil
		}
	}
	return nil, rpcserver.ErrTxNotFound
}

// Logs returns all logs in the inclusive block range matching the provided
// filter.
func (e *Engine) Logs(_ context.Context, from, to uint64, filter *types.LogFilterArgs) ([]types.Log, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	var matched []types.Log
	for number := from; number <= to && number < uint64(len(e.blocks)); number++ {
		for _, l := range e.logsByBlock[number] {
			if logMatches(&l, filter) {
				matched = append(matched, l)
			}
		}
	}
	return matched, nil
}

// logMatches returns whether the log entry passes the address and positional
// topic constraints of the filter.
func logMatches(l *types.Log, filter *types.LogFilterArgs) bool {
	if filter == nil {
		return true
	}
	if len(filter.Addresses) > 0 {
		matched := false
		for _, addr := range filter.Addresses {
			if strings.EqualFold(addr, l.Address) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for i, want := range filter.Topics {
		if want == "" {
			continue
		}
		if i >= len(l.Topics) || !strings.EqualFold(want, l.Topics[i]) {
			return false
		}
	}
	return true
}

// SyncStatus returns nil since the development engine is its own source of
// truth and is always synced.
func (e *Engine) SyncStatus() *types.SyncStatus {
	return nil
}

// GasPrice returns the engine's fixed gas price.
func (e *Engine) GasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(e.gasPrice), nil
}

// SubmitTransaction injects a signed transaction into the pending pool and
// returns its hash.  The development wire format for a signed transaction is
// the 0x-prefixed hex encoding of the JSON transaction arguments.
func (e *Engine) SubmitTransaction(_ context.Context, signedTx string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(signedTx, "0x"))
	if err != nil {
		return "", fmt.Errorf("malformed signed transaction: %w", err)
	}
	var args types.TransactionArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("malformed signed transaction: %w", err)
	}
	if args.From == "" {
		return "", errors.New("transaction has no sender")
	}

	tx := e.pendingTx(&args, signedTx)

	e.mtx.Lock()
	e.pending = append(e.pending, tx)
	notifier := e.notifier
	e.mtx.Unlock()

	log.Debugf("Accepted transaction %s from %s", tx.Hash, tx.From)
	if notifier != nil {
		notifier.NotifyNewTransaction(tx.Hash)
	}
	return tx.Hash, nil
}

// pendingTx converts submitted transaction arguments into the pending
// transaction record tracked by the pool.
func (e *Engine) pendingTx(args *types.TransactionArgs, signedTx string) *types.Transaction {
	value := "0x0"
	if args.Value != nil {
		value = *args.Value
	}
	gasPrice := "0x" + e.gasPrice.Text(16)
	if args.GasPrice != nil {
		gasPrice = *args.GasPrice
	}
	input := "0x"
	if args.Data != nil {
		input = *args.Data
	}
	nonce := "0x0"
	if args.Nonce != nil {
		nonce = *args.Nonce
	} else {
		e.mtx.Lock()
		nonce = "0x" + strconv.FormatUint(
			e.nonces[strings.ToLower(args.From)], 16)
		e.mtx.Unlock()
	}

	return &types.Transaction{
		Hash:     hashHex("tx", signedTx),
		From:     args.From,
		To:       args.To,
		Value:    value,
		Nonce:    nonce,
		GasPrice: gasPrice,
		Input:    input,
	}
}

// Accounts returns the addresses of all managed keys.
func (e *Engine) Accounts() []string {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	addrs := make([]string, 0, len(e.accounts))
	for addr := range e.accounts {
		addrs = append(addrs, addr)
	}
	return addrs
}

// HasAccount returns whether a key is managed for the address.
func (e *Engine) HasAccount(address string) bool {
	e.mtx.Lock()
	_, ok := e.accounts[strings.ToLower(address)]
	e.mtx.Unlock()
	return ok
}

// NewAccount generates a new prefunded development key protected by the
// passphrase and returns its address.
func (e *Engine) NewAccount(passphrase string) (string, error) {
	addr := newAddress()
	e.mtx.Lock()
	e.accounts[addr] = &account{address: addr, passphrase: passphrase}
	e.fund(addr)
	e.mtx.Unlock()
	log.Infof("Created development account %s", addr)
	return addr, nil
}

// Unlock marks the key for the address usable for signing for the given
// duration.  A zero duration keeps it unlocked until an explicit lock.
func (e *Engine) Unlock(address, passphrase string, timeout time.Duration) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	acct, ok := e.accounts[strings.ToLower(address)]
	if !ok {
		return rpcserver.ErrAccountNotFound
	}
	if acct.passphrase != passphrase {
		return errors.New("invalid passphrase")
	}
	if timeout == 0 {
		acct.indefinite = true
		acct.unlockedUntil = time.Time{}
	} else {
		acct.indefinite = false
		acct.unlockedUntil = time.Now().Add(timeout)
	}
	return nil
}

// Lock drops signing access for the address.
func (e *Engine) Lock(address string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	acct, ok := e.accounts[strings.ToLower(address)]
	if !ok {
		return rpcserver.ErrAccountNotFound
	}
	acct.indefinite = false
	acct.unlockedUntil = time.Time{}
	return nil
}

// SignTransaction signs the described transaction and returns the serialized
// signed transaction along with its hash.
func (e *Engine) SignTransaction(_ context.Context, tx *types.TransactionArgs) (string, string, error) {
	if tx.From == "" {
		return "", "", errors.New("transaction has no sender")
	}

	e.mtx.Lock()
	acct, ok := e.accounts[strings.ToLower(tx.From)]
	if !ok {
		e.mtx.Unlock()
		return "", "", rpcserver.ErrAccountNotFound
	}
	usable := acct.unlocked(time.Now())
	e.mtx.Unlock()
	if !usable {
		return "", "", rpcserver.ErrAccountLocked
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		return "", "", err
	}
	signedTx := "0x" + hex.EncodeToString(raw)
	return signedTx, hashHex("tx", signedTx), nil
}

// SignData signs arbitrary data with the key for the address and returns the
// hex-encoded digest standing in for a signature.
func (e *Engine) SignData(_ context.Context, address, data string) (string, error) {
	e.mtx.Lock()
	acct, ok := e.accounts[strings.ToLower(address)]
	if !ok {
		e.mtx.Unlock()
		return "", rpcserver.ErrAccountNotFound
	}
	usable := acct.unlocked(time.Now())
	e.mtx.Unlock()
	if !usable {
		return "", rpcserver.ErrAccountLocked
	}
	return hashHex("sign", address, data), nil
}

// PeerCount returns zero since the development engine runs standalone.
func (e *Engine) PeerCount() int {
	return 0
}

// Listening returns false since the development engine runs standalone.
func (e *Engine) Listening() bool {
	return false
}

// hashHex returns a 32-byte digest over the parts as a 0x-prefixed hex
// string.
func hashHex(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// newAddress returns a random 20-byte development address as a 0x-prefixed
// lowercase hex string.
func newAddress() string {
	var raw [20]byte
	rand.Read(raw[:])
	return "0x" + hex.EncodeToString(raw[:])
}
