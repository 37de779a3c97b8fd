// Package sealedref is a reference cryptoprimitives.Provider used by this
// module's own tests. It stands in for the out-of-scope OpenPGP binding
// using golang.org/x/crypto/nacl/secretbox for sealed payloads and
// golang.org/x/crypto/hkdf to derive per-purpose sub-keys from a key
// handle's opaque bytes, so a single injected Key can serve as both an
// "encryption" and a "signing" key without reusing raw key material
// directly as a secretbox key.
package sealedref

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
)

const (
	sealSalt = "drive-node-core/seal"
	signSalt = "drive-node-core/sign"
)

// Provider implements cryptoprimitives.Provider.
type Provider struct{}

// New builds a reference Provider.
func New() *Provider { return &Provider{} }

var _ cryptoprimitives.Provider = (*Provider)(nil)

type envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Signature  []byte `json:"signature,omitempty"`
}

func deriveKey(secret []byte, salt string) (*[32]byte, error) {
	h := hkdf.New(sha256.New, secret, []byte(salt), nil)
	var key [32]byte
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("sealedref: deriving key: %w", err)
	}
	return &key, nil
}

func sign(secret, plaintext []byte) ([]byte, error) {
	key, err := deriveKey(secret, signSalt)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key[:])
	mac.Write(plaintext)
	return mac.Sum(nil), nil
}

func seal(secret, plaintext, signature []byte) (string, error) {
	key, err := deriveKey(secret, sealSalt)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("sealedref: generating nonce: %w", err)
	}
	ciphertext := secretbox.Seal(nil, plaintext, &nonce, key)

	raw, err := json.Marshal(envelope{Nonce: nonce[:], Ciphertext: ciphertext, Signature: signature})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func open(secret []byte, armored string) ([]byte, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(armored)
	if err != nil {
		return nil, nil, fmt.Errorf("sealedref: armored payload is not valid base64: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("sealedref: malformed sealed envelope: %w", err)
	}
	if len(env.Nonce) != 24 {
		return nil, nil, fmt.Errorf("sealedref: malformed nonce")
	}
	key, err := deriveKey(secret, sealSalt)
	if err != nil {
		return nil, nil, err
	}
	var nonce [24]byte
	copy(nonce[:], env.Nonce)

	plaintext, ok := secretbox.Open(nil, env.Ciphertext, &nonce, key)
	if !ok {
		return nil, nil, fmt.Errorf("sealedref: decryption failed")
	}
	return plaintext, env.Signature, nil
}

func (p *Provider) DecryptAndVerify(armored string, decryptKey cryptoprimitives.Key, verifyKeys []cryptoprimitives.Key) (cryptoprimitives.VerifiedPlaintext, error) {
	plaintext, signature, err := open(decryptKey.Data, armored)
	if err != nil {
		return cryptoprimitives.VerifiedPlaintext{}, err
	}

	if len(signature) == 0 {
		return cryptoprimitives.VerifiedPlaintext{Plaintext: plaintext, Status: cryptoprimitives.SignatureNotPresent}, nil
	}
	if len(verifyKeys) == 0 {
		return cryptoprimitives.VerifiedPlaintext{Plaintext: plaintext, Status: cryptoprimitives.NoVerificationKeys}, nil
	}
	for _, vk := range verifyKeys {
		expected, err := sign(vk.Data, plaintext)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, signature) {
			return cryptoprimitives.VerifiedPlaintext{Plaintext: plaintext, Status: cryptoprimitives.SignatureAndValid}, nil
		}
	}
	return cryptoprimitives.VerifiedPlaintext{Plaintext: plaintext, Status: cryptoprimitives.SignatureAndInvalid}, nil
}

func (p *Provider) EncryptAndSign(plaintext []byte, encryptKey, signKey cryptoprimitives.Key) (string, error) {
	var signature []byte
	if len(signKey.Data) > 0 {
		var err error
		signature, err = sign(signKey.Data, plaintext)
		if err != nil {
			return "", err
		}
	}
	return seal(encryptKey.Data, plaintext, signature)
}

func (p *Provider) GenerateKey(passphrase []byte, encryptKey, signKey cryptoprimitives.Key) (string, []byte, error) {
	private := make([]byte, 32)
	if _, err := rand.Read(private); err != nil {
		return "", nil, fmt.Errorf("sealedref: generating private key: %w", err)
	}

	// The real source material stores the private key passphrase-
	// protected and ships the passphrase separately, itself encrypted to
	// encryptKey (see EncryptedCrypto.ArmoredPassphrase). The reference
	// provider only needs DecryptAndVerify(ArmoredKey, encryptKey, ...)
	// to invert this call, so it seals the private key straight to
	// encryptKey; passphrase is still generated and returned for callers
	// that persist it alongside ArmoredPassphrase.
	signature, err := sign(signKey.Data, private)
	if err != nil {
		return "", nil, err
	}
	armored, err := seal(encryptKey.Data, private, signature)
	if err != nil {
		return "", nil, err
	}
	return armored, private, nil
}

func (p *Provider) GenerateSessionKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("sealedref: generating session key: %w", err)
	}
	return key, nil
}

func (p *Provider) DecryptSessionKey(armoredKeyPacket string, decryptKey cryptoprimitives.Key) ([]byte, error) {
	plaintext, _, err := open(decryptKey.Data, armoredKeyPacket)
	return plaintext, err
}

func (p *Provider) EncryptSessionKey(sessionKey []byte, encryptKey cryptoprimitives.Key) (string, error) {
	return seal(encryptKey.Data, sessionKey, nil)
}
