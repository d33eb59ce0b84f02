package relay

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the relay identity key. The key material never appears in
// logs or errors; only the derived address does.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex-encoded private key and derives its address. Called
// once at startup so a bad key fails fast instead of at first submission.
func NewSigner(hexKey string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("relay: empty private key")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("relay: invalid private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address is the signer's derived account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignPayload produces the identity header value for a request body:
// "<address>:<hex signature over keccak256(body)>".
func (s *Signer) SignPayload(body []byte) (string, error) {
	digest := crypto.Keccak256(body)
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("relay: sign payload: %w", err)
	}
	return s.address.Hex() + ":" + hexutil.Encode(sig), nil
}
