// Package envelope encrypts registry credentials for the VM service.
//
// A fresh 256-bit key encrypts the credential payload with AES. The key
// itself travels RSA-encrypted under the service public key, so only the
// service can open the envelope.
package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

const keySize = 32

// ServicePublicKey is the RSA key the VM service decrypts credentials with.
const ServicePublicKey = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA4oLWArYud2yi7PUYQp90
5BfPHyklsEnZmOhceuinPjTiJd9yg5Ur3+91bRV2zigSK7jwqTK0IQCuTuGJRjWZ
Hhg5QxJ5iwwgaY1DjSkNIj6doCGROtXR3BCDyVEnkWxoDSmX256Pv5UWtqiLENSz
iOT6vcmCce1AwPLMMVfEegTFDTKceqm8teyGgIKO3s9/WVKWYKxURXxCeKb535MN
A6E5Cgopo/NxuHWCs3nZumXli3D3m3aXHyeoQwBgf7mI7TdwzKd5HMwcmN1khDi4
WaQiiGeHEOIq3yUhV9jF4gNSBlzmPMmIFlzdTGmiOVTmoVQ8a5stGReFvTFMRAbr
OQIDAQAB
-----END PUBLIC KEY-----
`

// ErrEncryption wraps every failure returned by Encrypt.
var ErrEncryption = errors.New("encryption failed")

// Envelope is the pair sent in place of plaintext credentials.
type Envelope struct {
	EncryptedData   string `json:"encryptedData"`
	EncryptedAESKey string `json:"encryptedAESKey"`
}

// Credentials is the payload sealed inside the envelope.
type Credentials struct {
	Repository string `json:"repository"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Encrypter seals payloads for one RSA public key.
type Encrypter struct {
	publicKey *rsa.PublicKey
	random    io.Reader
}

// Option configures an Encrypter.
type Option func(*Encrypter) error

// WithPublicKeyPEM replaces the service key, mainly for tests.
func WithPublicKeyPEM(pemData []byte) Option {
	return func(e *Encrypter) error {
		key, err := ParsePublicKey(pemData)
		if err != nil {
			return err
		}
		e.publicKey = key
		return nil
	}
}

// WithRandom sets the randomness source.
func WithRandom(r io.Reader) Option {
	return func(e *Encrypter) error {
		e.random = r
		return nil
	}
}

// New creates an Encrypter for the service public key.
func New(opts ...Option) (*Encrypter, error) {
	e := &Encrypter{random: rand.Reader}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
		}
	}

	if e.publicKey == nil {
		key, err := ParsePublicKey([]byte(ServicePublicKey))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
		}
		e.publicKey = key
	}
	return e, nil
}

// ParsePublicKey decodes a PEM "PUBLIC KEY" (PKIX) or "RSA PUBLIC KEY" block.
func ParsePublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in public key")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", parsed)
		}
		return key, nil
	}
}

// EncryptCredentials seals the registry credential triple.
func (e *Encrypter) EncryptCredentials(registry, username, password string) (*Envelope, error) {
	payload, err := json.Marshal(Credentials{
		Repository: registry,
		Username:   username,
		Password:   password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	return e.Encrypt(payload)
}

// Encrypt seals plaintext under a fresh random key. No partial envelope is
// ever returned.
func (e *Encrypter) Encrypt(plaintext []byte) (*Envelope, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(e.random, key); err != nil {
		return nil, fmt.Errorf("%w: generating key: %w", ErrEncryption, err)
	}
	passphrase := base64.StdEncoding.EncodeToString(key)

	data, err := opensslEncrypt(e.random, []byte(passphrase), plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	wrapped, err := e.wrapKey([]byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	return &Envelope{
		EncryptedData:   base64.StdEncoding.EncodeToString(data),
		EncryptedAESKey: base64.StdEncoding.EncodeToString(wrapped),
	}, nil
}

// wrapKey encrypts the encoded key with OAEP and falls back to PKCS#1 v1.5.
func (e *Encrypter) wrapKey(encodedKey []byte) ([]byte, error) {
	out, err := rsa.EncryptOAEP(sha1.New(), e.random, e.publicKey, encodedKey, nil)
	if err == nil {
		return out, nil
	}

	out, fallbackErr := rsa.EncryptPKCS1v15(e.random, e.publicKey, encodedKey)
	if fallbackErr != nil {
		return nil, fmt.Errorf("rsa encryption: %w", errors.Join(err, fallbackErr))
	}
	return out, nil
}

// EncryptCredentials seals the credentials with the service public key.
func EncryptCredentials(registry, username, password string) (*Envelope, error) {
	e, err := New()
	if err != nil {
		return nil, err
	}
	return e.EncryptCredentials(registry, username, password)
}
