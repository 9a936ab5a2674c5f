package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

func hostHash(ctx context.Context, _ api.Module, data uint32) uint32 {
	const name = "hash"
	env, done := hostEnter(ctx, name)
	defer done()
	digest, err := env.iface.Hash(env.readBuffer(name, data))
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, digest)
}

func hostSignatureVerify(ctx context.Context, _ api.Module, data, signature, publicKey uint32) uint32 {
	const name = "signature_verify"
	env, done := hostEnter(ctx, name)
	defer done()
	ok, err := env.iface.SignatureVerify(
		env.readBuffer(name, data),
		env.readString(name, signature),
		env.readString(name, publicKey),
	)
	if err != nil {
		env.fail(name, err)
	}
	return boolToU32(ok)
}

func hostAddressFromPublicKey(ctx context.Context, _ api.Module, publicKey uint32) uint32 {
	const name = "address_from_public_key"
	env, done := hostEnter(ctx, name)
	defer done()
	address, err := env.iface.AddressFromPublicKey(env.readString(name, publicKey))
	if err != nil {
		env.fail(name, err)
	}
	return env.newString(ctx, name, address)
}
