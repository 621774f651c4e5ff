package tokenstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

var errUnsealFailed = errors.New("unable to unseal stored token")

// sealer encrypts values at rest. A nil sealer stores values as given.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) (*sealer, error) {
	if secret == "" {
		return nil, nil
	}
	s := &sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("tokenstore seal v1"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, errors.Wrap(err, "[newSealer] derive key")
	}
	return s, nil
}

func (s *sealer) seal(value string) (string, error) {
	if s == nil {
		return value, nil
	}
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", errors.Wrap(err, "[sealer.seal] rand.Read")
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *sealer) open(stored string) (string, error) {
	if s == nil {
		return stored, nil
	}
	box, err := base64.RawURLEncoding.DecodeString(stored)
	if err != nil || len(box) < nonceLength {
		return "", errUnsealFailed
	}
	var nonce [nonceLength]byte
	copy(nonce[:], box[:nonceLength])
	plain, ok := secretbox.Open(nil, box[nonceLength:], &nonce, &s.key)
	if !ok {
		return "", errUnsealFailed
	}
	return string(plain), nil
}
