package runtime_test

import (
	"github.com/sandboxvm/scruntime/types"
)

// recorder is a host that records the name of every method called on it and
// returns zero values.
type recorder struct {
	calls []string
}

var _ types.Interface = (*recorder)(nil)

func (r *recorder) record(name string) { r.calls = append(r.calls, name) }

func (r *recorder) Print(string) error { r.record("Print"); return nil }

func (r *recorder) InitCall(string, uint64) ([]byte, error) { r.record("InitCall"); return nil, nil }
func (r *recorder) FinishCall() error                       { r.record("FinishCall"); return nil }
func (r *recorder) CreateModule([]byte) (string, error)     { r.record("CreateModule"); return "", nil }

func (r *recorder) GetBalance() (uint64, error)          { r.record("GetBalance"); return 0, nil }
func (r *recorder) GetBalanceFor(string) (uint64, error) { r.record("GetBalanceFor"); return 0, nil }
func (r *recorder) TransferCoins(string, uint64) error   { r.record("TransferCoins"); return nil }
func (r *recorder) TransferCoinsFor(string, string, uint64) error {
	r.record("TransferCoinsFor")
	return nil
}
func (r *recorder) GetCallCoins() (uint64, error) { r.record("GetCallCoins"); return 0, nil }

func (r *recorder) RawGetData([]byte) ([]byte, error) { r.record("RawGetData"); return nil, nil }
func (r *recorder) RawGetDataFor(string, []byte) ([]byte, error) {
	r.record("RawGetDataFor")
	return nil, nil
}
func (r *recorder) RawSetData([]byte, []byte) error { r.record("RawSetData"); return nil }
func (r *recorder) RawSetDataFor(string, []byte, []byte) error {
	r.record("RawSetDataFor")
	return nil
}
func (r *recorder) RawAppendData([]byte, []byte) error { r.record("RawAppendData"); return nil }
func (r *recorder) RawAppendDataFor(string, []byte, []byte) error {
	r.record("RawAppendDataFor")
	return nil
}
func (r *recorder) RawDeleteData([]byte) error { r.record("RawDeleteData"); return nil }
func (r *recorder) RawDeleteDataFor(string, []byte) error {
	r.record("RawDeleteDataFor")
	return nil
}
func (r *recorder) HasData([]byte) (bool, error) { r.record("HasData"); return false, nil }
func (r *recorder) HasDataFor(string, []byte) (bool, error) {
	r.record("HasDataFor")
	return false, nil
}
func (r *recorder) GetKeys([]byte) ([][]byte, error) { r.record("GetKeys"); return nil, nil }
func (r *recorder) GetKeysFor(string, []byte) ([][]byte, error) {
	r.record("GetKeysFor")
	return nil, nil
}

func (r *recorder) GetOpKeys() ([][]byte, error)     { r.record("GetOpKeys"); return nil, nil }
func (r *recorder) HasOpKey([]byte) (bool, error)    { r.record("HasOpKey"); return false, nil }
func (r *recorder) GetOpData([]byte) ([]byte, error) { r.record("GetOpData"); return nil, nil }

func (r *recorder) RawGetBytecode() ([]byte, error) { r.record("RawGetBytecode"); return nil, nil }
func (r *recorder) RawGetBytecodeFor(string) ([]byte, error) {
	r.record("RawGetBytecodeFor")
	return nil, nil
}
func (r *recorder) RawSetBytecode([]byte) error { r.record("RawSetBytecode"); return nil }
func (r *recorder) RawSetBytecodeFor(string, []byte) error {
	r.record("RawSetBytecodeFor")
	return nil
}

func (r *recorder) GetCallStack() ([]string, error) { r.record("GetCallStack"); return nil, nil }
func (r *recorder) GetOwnedAddresses() ([]string, error) {
	r.record("GetOwnedAddresses")
	return nil, nil
}
func (r *recorder) CallerHasWriteAccess() (bool, error) {
	r.record("CallerHasWriteAccess")
	return false, nil
}

func (r *recorder) Hash([]byte) ([]byte, error) { r.record("Hash"); return nil, nil }
func (r *recorder) SignatureVerify([]byte, string, string) (bool, error) {
	r.record("SignatureVerify")
	return false, nil
}
func (r *recorder) AddressFromPublicKey(string) (string, error) {
	r.record("AddressFromPublicKey")
	return "", nil
}

func (r *recorder) GenerateEvent(string) error           { r.record("GenerateEvent"); return nil }
func (r *recorder) UnsafeRandom() (int64, error)         { r.record("UnsafeRandom"); return 0, nil }
func (r *recorder) UnsafeRandomF64() (float64, error)    { r.record("UnsafeRandomF64"); return 0, nil }
func (r *recorder) GetTime() (uint64, error)             { r.record("GetTime"); return 0, nil }
func (r *recorder) GetCurrentPeriod() (uint64, error)    { r.record("GetCurrentPeriod"); return 0, nil }
func (r *recorder) GetCurrentThread() (uint8, error)     { r.record("GetCurrentThread"); return 0, nil }
func (r *recorder) SendMessage(types.AsyncMessage) error { r.record("SendMessage"); return nil }
