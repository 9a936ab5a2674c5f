package ledger

import (
	"encoding/binary"

	"github.com/sandboxvm/scruntime/types"
)

// OperationDatastore

func (l *Ledger) GetOpKeys() ([][]byte, error) {
	return l.op.keys(), nil
}

func (l *Ledger) HasOpKey(key []byte) (bool, error) {
	_, ok := l.op.get(key)
	return ok, nil
}

func (l *Ledger) GetOpData(key []byte) ([]byte, error) {
	value, ok := l.op.get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// BytecodeStore

func (l *Ledger) RawGetBytecode() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return nil, err
	}
	return l.store.get(bytecodeKey(address))
}

// RawGetBytecodeFor returns nil for an address without bytecode.
func (l *Ledger) RawGetBytecodeFor(address string) ([]byte, error) {
	return l.store.get(bytecodeKey(address))
}

func (l *Ledger) RawSetBytecode(bytecode []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	address, err := l.current()
	if err != nil {
		return err
	}
	return l.store.set(bytecodeKey(address), bytecode)
}

func (l *Ledger) RawSetBytecodeFor(address string, bytecode []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writable(address); err != nil {
		return err
	}
	return l.store.set(bytecodeKey(address), bytecode)
}

// CallContext

// GetCallStack lists the addresses of the call stack, outermost first.
func (l *Ledger) GetCallStack() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stack := make([]string, len(l.stack))
	for i, f := range l.stack {
		stack[i] = f.address
	}
	return stack, nil
}

func (l *Ledger) GetOwnedAddresses() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.top()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), f.owned...), nil
}

// CallerHasWriteAccess reports whether the frame below the current one owns
// the current address. The outermost frame always has write access.
func (l *Ledger) CallerHasWriteAccess() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.stack)
	if n == 0 {
		return false, ErrEmptyCallStack
	}
	if n == 1 {
		return true, nil
	}
	return l.stack[n-2].owns(l.stack[n-1].address), nil
}

// Crypto

func (l *Ledger) Hash(data []byte) ([]byte, error) {
	return Hash(data), nil
}

func (l *Ledger) SignatureVerify(data []byte, signature, publicKey string) (bool, error) {
	return SignatureVerify(data, signature, publicKey)
}

func (l *Ledger) AddressFromPublicKey(publicKey string) (string, error) {
	return AddressFromPublicKey(publicKey)
}

// Chain

func (l *Ledger) GenerateEvent(data string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, data)
	l.logger.Debug().Str("event", data).Msg("event generated")
	return nil
}

// nextRandom advances the hash chain seeded by Config.Seed.
func (l *Ledger) nextRandom() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rngState = Hash(l.rngState)
	return binary.LittleEndian.Uint64(l.rngState)
}

func (l *Ledger) UnsafeRandom() (int64, error) {
	return int64(l.nextRandom()), nil
}

// UnsafeRandomF64 returns a float in [0, 1).
func (l *Ledger) UnsafeRandomF64() (float64, error) {
	return float64(l.nextRandom()>>11) / (1 << 53), nil
}

func (l *Ledger) GetTime() (uint64, error) {
	return l.cfg.Time, nil
}

func (l *Ledger) GetCurrentPeriod() (uint64, error) {
	return l.cfg.Period, nil
}

func (l *Ledger) GetCurrentThread() (uint8, error) {
	return l.cfg.Thread, nil
}

func (l *Ledger) SendMessage(msg types.AsyncMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	l.logger.Debug().
		Str("target", msg.TargetAddress).
		Str("handler", msg.TargetHandler).
		Uint64("max_gas", msg.MaxGas).
		Msg("async message sent")
	return nil
}
