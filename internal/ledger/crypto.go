package ledger

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// AddressPrefix starts every user address.
const AddressPrefix = "A"

var (
	errInvalidPublicKey = errors.New("invalid public key")
	errInvalidSignature = errors.New("invalid signature")
)

// Hash returns the BLAKE2b-256 digest of data.
func Hash(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// AddressFromPublicKey derives the address of a base58 encoded ed25519 public key.
func AddressFromPublicKey(publicKey string) (string, error) {
	pk, err := decodePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return AddressPrefix + base58.Encode(Hash(pk)), nil
}

// EncodePublicKey returns the text form of pk used by guests.
func EncodePublicKey(pk ed25519.PublicKey) string {
	return base58.Encode(pk)
}

// Sign signs data with sk and returns the base58 text form of the signature.
func Sign(sk ed25519.PrivateKey, data []byte) string {
	return base58.Encode(ed25519.Sign(sk, data))
}

// SignatureVerify checks a base58 ed25519 signature of data against a base58 public key.
func SignatureVerify(data []byte, signature, publicKey string) (bool, error) {
	pk, err := decodePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	sig, err := base58.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errInvalidSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: %d bytes", errInvalidSignature, len(sig))
	}
	return ed25519.Verify(pk, data, sig), nil
}

func decodePublicKey(publicKey string) (ed25519.PublicKey, error) {
	pk, err := base58.Decode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPublicKey, err)
	}
	if len(pk) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", errInvalidPublicKey, len(pk))
	}
	return ed25519.PublicKey(pk), nil
}

// deriveAddress builds the address of a contract created by creator.
func deriveAddress(creator string, nonce uint64) string {
	seed := binary.BigEndian.AppendUint64([]byte(creator), nonce)
	return AddressPrefix + base58.Encode(Hash(seed))
}
