// Package ledger is a self-contained host for guest contracts: balances,
// bytecode and datastores live in a key/value database, and everything
// else is held in memory for the lifetime of one ledger.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/rs/zerolog"

	"github.com/sandboxvm/scruntime/types"
)

var (
	ErrKeyNotFound       = errors.New("datastore key not found")
	ErrNoBytecode        = errors.New("address has no bytecode")
	ErrNoWriteAccess     = errors.New("no write access to address")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrEmptyCallStack    = errors.New("call stack is empty")
)

// Key spaces of the database.
var (
	prefixData     = []byte("d/")
	prefixBalance  = []byte("b/")
	prefixBytecode = []byte("c/")
)

// Config sets the initial state of a ledger.
type Config struct {
	// Caller is the address the execution starts from.
	Caller string
	// CallCoins are the coins attached to the first frame.
	CallCoins uint64
	Period    uint64
	Thread    uint8
	// Time is the timestamp reported to guests, in milliseconds.
	Time uint64
	// Seed feeds the deterministic random generator.
	Seed []byte
	// OpData is the datastore of the operation being executed.
	OpData map[string][]byte
}

type frame struct {
	address string
	coins   uint64
	owned   []string
}

func (f *frame) owns(address string) bool {
	for _, a := range f.owned {
		if a == address {
			return true
		}
	}
	return false
}

// Ledger implements types.Interface.
type Ledger struct {
	mu     sync.Mutex
	store  *store
	logger zerolog.Logger
	cfg    Config
	op     *opDatastore

	stack    []*frame
	rngState []byte
	nonce    uint64

	events   []string
	messages []types.AsyncMessage
	prints   []string
}

var _ types.Interface = (*Ledger)(nil)

// New builds a ledger on db. The ledger takes ownership of db.
func New(db dbm.DB, cfg Config, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:    newStore(db),
		logger:   logger,
		cfg:      cfg,
		op:       newOpDatastore(cfg.OpData),
		stack:    []*frame{{address: cfg.Caller, coins: cfg.CallCoins, owned: []string{cfg.Caller}}},
		rngState: Hash(cfg.Seed),
	}
}

// NewMemory builds a ledger on an in-memory database.
func NewMemory(cfg Config, logger zerolog.Logger) *Ledger {
	return New(dbm.NewMemDB(), cfg, logger)
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.store.close()
}

func (l *Ledger) top() (*frame, error) {
	if len(l.stack) == 0 {
		return nil, ErrEmptyCallStack
	}
	return l.stack[len(l.stack)-1], nil
}

func (l *Ledger) current() (string, error) {
	f, err := l.top()
	if err != nil {
		return "", err
	}
	return f.address, nil
}

// writable returns an error unless the current frame may write to address.
func (l *Ledger) writable(address string) error {
	f, err := l.top()
	if err != nil {
		return err
	}
	if !f.owns(address) {
		return fmt.Errorf("%w: %s", ErrNoWriteAccess, address)
	}
	return nil
}

func dataKey(address string, key []byte) []byte {
	k := make([]byte, 0, len(prefixData)+len(address)+1+len(key))
	k = append(k, prefixData...)
	k = append(k, address...)
	k = append(k, '/')
	return append(k, key...)
}

func balanceKey(address string) []byte {
	return append(append([]byte(nil), prefixBalance...), address...)
}

func bytecodeKey(address string) []byte {
	return append(append([]byte(nil), prefixBytecode...), address...)
}

// Setup helpers, used to seed state before an execution.

// SetBalance overrides the balance of address.
func (l *Ledger) SetBalance(address string, amount uint64) error {
	return l.store.set(balanceKey(address), binary.BigEndian.AppendUint64(nil, amount))
}

// SetBytecode overrides the bytecode of address.
func (l *Ledger) SetBytecode(address string, bytecode []byte) error {
	return l.store.set(bytecodeKey(address), bytecode)
}

// Events returns the events generated so far.
func (l *Ledger) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Messages returns the async messages sent so far.
func (l *Ledger) Messages() []types.AsyncMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.AsyncMessage(nil), l.messages...)
}

// Prints returns the messages printed so far.
func (l *Ledger) Prints() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prints...)
}

// Printer

func (l *Ledger) Print(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prints = append(l.prints, message)
	l.logger.Info().Str("message", message).Msg("guest print")
	return nil
}

// CallManager

func (l *Ledger) InitCall(address string, coins uint64) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	caller, err := l.current()
	if err != nil {
		return nil, err
	}
	bytecode, err := l.store.get(bytecodeKey(address))
	if err != nil {
		return nil, err
	}
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, address)
	}
	if err := l.transfer(caller, address, coins); err != nil {
		return nil, err
	}
	l.stack = append(l.stack, &frame{address: address, coins: coins, owned: []string{address}})
	l.logger.Debug().Str("from", caller).Str("to", address).Uint64("coins", coins).Msg("call started")
	return bytecode, nil
}

func (l *Ledger) FinishCall() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.stack) <= 1 {
		return ErrEmptyCallStack
	}
	l.stack = l.stack[:len(l.stack)-1]
	return nil
}

func (l *Ledger) CreateModule(bytecode []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.top()
	if err != nil {
		return "", err
	}
	l.nonce++
	address := deriveAddress(f.address, l.nonce)
	if err := l.store.set(bytecodeKey(address), bytecode); err != nil {
		return "", err
	}
	f.owned = append(f.owned, address)
	l.logger.Debug().Str("creator", f.address).Str("address", address).Msg("contract created")
	return address, nil
}

// CoinLedger

func (l *Ledger) balance(address string) (uint64, error) {
	raw, err := l.store.get(balanceKey(address))
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *Ledger) transfer(from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromBalance, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, fromBalance, amount)
	}
	toBalance, err := l.balance(to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("balance of %s overflows", to)
	}
	if err := l.SetBalance(from, fromBalance-amount); err != nil {
		return err
	}
	return l.SetBalance(to, toBalance+amount)
}

func (l *Ledger) GetBalance() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return 0, err
	}
	return l.balance(address)
}

func (l *Ledger) GetBalanceFor(address string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(address)
}

func (l *Ledger) TransferCoins(to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from, err := l.current()
	if err != nil {
		return err
	}
	return l.transfer(from, to, amount)
}

func (l *Ledger) TransferCoinsFor(from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(from); err != nil {
		return err
	}
	return l.transfer(from, to, amount)
}

func (l *Ledger) GetCallCoins() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.top()
	if err != nil {
		return 0, err
	}
	return f.coins, nil
}

// Datastore

func (l *Ledger) getData(address string, key []byte) ([]byte, error) {
	value, err := l.store.get(dataKey(address, key))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return value, nil
}

func (l *Ledger) setData(address string, key, value []byte) error {
	if err := l.writable(address); err != nil {
		return err
	}
	return l.store.set(dataKey(address, key), value)
}

func (l *Ledger) appendData(address string, key, value []byte) error {
	if err := l.writable(address); err != nil {
		return err
	}
	old, err := l.getData(address, key)
	if err != nil {
		return err
	}
	return l.store.set(dataKey(address, key), append(append([]byte(nil), old...), value...))
}

func (l *Ledger) deleteData(address string, key []byte) error {
	if err := l.writable(address); err != nil {
		return err
	}
	if _, err := l.getData(address, key); err != nil {
		return err
	}
	return l.store.delete(dataKey(address, key))
}

func (l *Ledger) RawGetData(key []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return nil, err
	}
	return l.getData(address, key)
}

func (l *Ledger) RawGetDataFor(address string, key []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getData(address, key)
}

func (l *Ledger) RawSetData(key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return err
	}
	return l.setData(address, key, value)
}

func (l *Ledger) RawSetDataFor(address string, key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setData(address, key, value)
}

func (l *Ledger) RawAppendData(key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return err
	}
	return l.appendData(address, key, value)
}

func (l *Ledger) RawAppendDataFor(address string, key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendData(address, key, value)
}

func (l *Ledger) RawDeleteData(key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return err
	}
	return l.deleteData(address, key)
}

func (l *Ledger) RawDeleteDataFor(address string, key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleteData(address, key)
}

func (l *Ledger) HasData(key []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return false, err
	}
	return l.store.has(dataKey(address, key))
}

func (l *Ledger) HasDataFor(address string, key []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.has(dataKey(address, key))
}

func (l *Ledger) GetKeys(prefix []byte) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return nil, err
	}
	return l.store.keysWithPrefix(dataKey(address, nil), prefix)
}

func (l *Ledger) GetKeysFor(address string, prefix []byte) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.keysWithPrefix(dataKey(address, nil), prefix)
}
