package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

const keySize = 32

var (
	ErrInvalidKey        = errors.New("secret key must be base64 and decode to 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Cipher encrypts secret values with AES-256-CBC. The random IV is prepended to the
// ciphertext and the result is base64 encoded.
type Cipher struct {
	block cipher.Block
}

func NewCipher(base64Key string) (*Cipher, error) {
	if base64Key == "" {
		return nil, ErrInvalidKey
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	return NewCipherFromKey(key)
}

func NewCipherFromKey(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create block cipher")
	}
	return &Cipher{block: block}, nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	padded := pad([]byte(plain), aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Wrap(err, "failed to generate iv")
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(ErrInvalidCiphertext, "not base64")
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrInvalidCiphertext, "wrong length")
	}

	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)

	unpadded, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// pkcs7
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidCiphertext, "empty")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.Wrap(ErrInvalidCiphertext, "bad padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.Wrap(ErrInvalidCiphertext, "bad padding")
		}
	}
	return data[:len(data)-n], nil
}
