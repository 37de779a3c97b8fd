package cryptoprimitives

// Key is an opaque handle to a private or public key. Real implementations
// wrap an OpenPGP key; this module never inspects the Data field itself.
type Key struct {
	Email string
	Data  []byte
}

// VerificationStatus reports the outcome of verifying a claimed signature
// against a set of public keys.
type VerificationStatus int

const (
	// SignatureNotPresent means the payload carried no signature at all.
	SignatureNotPresent VerificationStatus = iota
	// SignatureAndValid means a signature was present and validated
	// against at least one of the given keys.
	SignatureAndValid
	// SignatureAndInvalid means a signature was present but did not
	// validate against any given key.
	SignatureAndInvalid
	// NoVerificationKeys means no public keys were available to check
	// against, so the signature (if any) could not be evaluated.
	NoVerificationKeys
)

// VerifiedPlaintext is the result of a combined decrypt+verify operation.
type VerifiedPlaintext struct {
	Plaintext []byte
	Status    VerificationStatus
}

// Provider is the cryptographic primitives boundary. All methods are
// expected to be safe for concurrent use; this module calls them from
// bounded-concurrency decrypt pools.
type Provider interface {
	// DecryptAndVerify decrypts armored under decryptKey and, if
	// verifyKeys is non-empty, verifies any embedded signature against
	// them.
	DecryptAndVerify(armored string, decryptKey Key, verifyKeys []Key) (VerifiedPlaintext, error)

	// EncryptAndSign encrypts plaintext to encryptKey, signing with
	// signKey.
	EncryptAndSign(plaintext []byte, encryptKey Key, signKey Key) (armored string, err error)

	// GenerateKey creates a fresh private node/hash key protected by
	// passphrase, encrypted to encryptKey and signed by signKey. It
	// returns both the armored form (to send to the backend) and the raw
	// private key material (to populate DecryptedNodeKeys immediately,
	// without a round-trip decrypt).
	GenerateKey(passphrase []byte, encryptKey Key, signKey Key) (armoredKey string, privateKey []byte, err error)

	// GenerateSessionKey returns fresh symmetric key material suitable
	// for wrapping a node's name or content key.
	GenerateSessionKey() ([]byte, error)

	// DecryptSessionKey unwraps a key packet under decryptKey.
	DecryptSessionKey(armoredKeyPacket string, decryptKey Key) ([]byte, error)

	// EncryptSessionKey wraps sessionKey for encryptKey.
	EncryptSessionKey(sessionKey []byte, encryptKey Key) (armoredKeyPacket string, err error)
}
