package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"fmt"
	"io"
)

// saltedMagic prefixes the OpenSSL "enc" compatible format accepted by the
// service: "Salted__" || salt(8) || AES-256-CBC ciphertext.
var saltedMagic = []byte("Salted__")

const saltSize = 8

// opensslEncrypt derives key and IV from passphrase with EVP_BytesToKey
// (MD5, one iteration) and encrypts plaintext with AES-256-CBC and PKCS#7.
func opensslEncrypt(random io.Reader, passphrase, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	key, iv := evpBytesToKey(passphrase, salt, 32, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(saltedMagic)+saltSize+len(ciphertext))
	out = append(out, saltedMagic...)
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return out, nil
}

func evpBytesToKey(passphrase, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}
