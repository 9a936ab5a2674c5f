package runtime

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// maxKeyLength is the largest key a key list can carry: lengths are encoded
// on one byte.
const maxKeyLength = math.MaxUint8

func (env *ASContext) readBuffer(name string, ptr uint32) []byte {
	data, err := env.manager.ReadBuffer(ptr)
	if err != nil {
		env.fail(name, err)
	}
	return data
}

func (env *ASContext) readString(name string, ptr uint32) string {
	s, err := env.manager.ReadString(ptr)
	if err != nil {
		env.fail(name, err)
	}
	return s
}

func (env *ASContext) readStringOrEmpty(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	s, err := env.manager.ReadString(ptr)
	if err != nil {
		env.logger.Debug().Err(err).Uint32("ptr", ptr).Msg("unreadable string")
		return ""
	}
	return s
}

func (env *ASContext) newBuffer(ctx context.Context, name string, data []byte) uint32 {
	ptr, err := env.allocator.AllocBuffer(ctx, data)
	if err != nil {
		env.fail(name, err)
	}
	return ptr
}

func (env *ASContext) newString(ctx context.Context, name string, s string) uint32 {
	ptr, err := env.allocator.AllocString(ctx, s)
	if err != nil {
		env.fail(name, err)
	}
	return ptr
}

func (env *ASContext) newJSONString(ctx context.Context, name string, v interface{}) uint32 {
	data, err := json.Marshal(v)
	if err != nil {
		env.fail(name, err)
	}
	return env.newString(ctx, name, string(data))
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// encodeKeys serializes a key list as a little-endian u32 count followed by
// each key prefixed with its one byte length.
func encodeKeys(keys [][]byte) ([]byte, error) {
	size := 4
	for _, k := range keys {
		if len(k) > maxKeyLength {
			return nil, fmt.Errorf("key of %d bytes exceeds %d", len(k), maxKeyLength)
		}
		size += 1 + len(k)
	}
	out := make([]byte, 4, size)
	binary.LittleEndian.PutUint32(out, uint32(len(keys)))
	for _, k := range keys {
		out = append(out, byte(len(k)))
		out = append(out, k...)
	}
	return out, nil
}
