package types

// Printer receives the messages guests print.
type Printer interface {
	Print(message string) error
}

// CallManager drives inter-contract calls and contract creation.
type CallManager interface {
	// InitCall pushes a call frame targeting address, moves coins to it and
	// returns its bytecode.
	InitCall(address string, coins uint64) ([]byte, error)
	// FinishCall pops the frame pushed by InitCall.
	FinishCall() error
	// CreateModule stores bytecode under a freshly derived address owned by the caller.
	CreateModule(bytecode []byte) (string, error)
}

// CoinLedger exposes balances and transfers.
type CoinLedger interface {
	GetBalance() (uint64, error)
	GetBalanceFor(address string) (uint64, error)
	TransferCoins(to string, amount uint64) error
	TransferCoinsFor(from, to string, amount uint64) error
	GetCallCoins() (uint64, error)
}

// Datastore is the keyed storage of a contract. Methods without the For suffix
// act on the address currently executing.
type Datastore interface {
	RawGetData(key []byte) ([]byte, error)
	RawGetDataFor(address string, key []byte) ([]byte, error)
	RawSetData(key, value []byte) error
	RawSetDataFor(address string, key, value []byte) error
	RawAppendData(key, value []byte) error
	RawAppendDataFor(address string, key, value []byte) error
	RawDeleteData(key []byte) error
	RawDeleteDataFor(address string, key []byte) error
	HasData(key []byte) (bool, error)
	HasDataFor(address string, key []byte) (bool, error)
	GetKeys(prefix []byte) ([][]byte, error)
	GetKeysFor(address string, prefix []byte) ([][]byte, error)
}

// OperationDatastore is the read-only datastore attached to the operation
// that triggered the execution.
type OperationDatastore interface {
	GetOpKeys() ([][]byte, error)
	HasOpKey(key []byte) (bool, error)
	GetOpData(key []byte) ([]byte, error)
}

// BytecodeStore reads and replaces contract bytecode.
type BytecodeStore interface {
	RawGetBytecode() ([]byte, error)
	RawGetBytecodeFor(address string) ([]byte, error)
	RawSetBytecode(bytecode []byte) error
	RawSetBytecodeFor(address string, bytecode []byte) error
}

// CallContext describes who is running and on whose behalf.
type CallContext interface {
	GetCallStack() ([]string, error)
	GetOwnedAddresses() ([]string, error)
	CallerHasWriteAccess() (bool, error)
}

// Crypto groups the pure cryptographic helpers.
type Crypto interface {
	Hash(data []byte) ([]byte, error)
	SignatureVerify(data []byte, signature, publicKey string) (bool, error)
	AddressFromPublicKey(publicKey string) (string, error)
}

// Chain exposes clock, slot and randomness information and async messaging.
type Chain interface {
	GenerateEvent(data string) error
	UnsafeRandom() (int64, error)
	UnsafeRandomF64() (float64, error)
	GetTime() (uint64, error)
	GetCurrentPeriod() (uint64, error)
	GetCurrentThread() (uint8, error)
	SendMessage(msg AsyncMessage) error
}

// Interface is everything the runtime needs from its host. Every method may
// fail; a failure aborts the running guest.
type Interface interface {
	Printer
	CallManager
	CoinLedger
	Datastore
	OperationDatastore
	BytecodeStore
	CallContext
	Crypto
	Chain
}

// AsyncMessage is a message a contract schedules for later execution.
type AsyncMessage struct {
	TargetAddress       string `json:"target_address"`
	TargetHandler       string `json:"target_handler"`
	ValidityStartPeriod uint64 `json:"validity_start_period"`
	ValidityStartThread uint8  `json:"validity_start_thread"`
	ValidityEndPeriod   uint64 `json:"validity_end_period"`
	ValidityEndThread   uint8  `json:"validity_end_thread"`
	MaxGas              uint64 `json:"max_gas"`
	GasPrice            uint64 `json:"gas_price"`
	Coins               uint64 `json:"coins"`
	Data                []byte `json:"data"`
}
