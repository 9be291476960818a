package codec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyBits is the RSA modulus size of generated key pairs.
const KeyBits = 2048

// KeyPair holds an exportable RSA key pair.
//
// PrivateKey is an unencrypted PKCS#8 PEM block. Protect it at rest.
// PublicKey is in OpenSSH authorized_keys format ("ssh-rsa AAAA...").
type KeyPair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeyPair creates a fresh RSA key pair suitable for signing.
func GenerateKeyPair() (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key pair: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key pair: marshal private key: %w", err)
	}
	private := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	public, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key pair: marshal public key: %w", err)
	}

	return KeyPair{
		PrivateKey: string(private),
		PublicKey:  strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(public)), "\n"),
	}, nil
}

// ParsePrivateKey decodes a PKCS#8 PEM private key produced by GenerateKeyPair.
func ParsePrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("parse private key: no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parse private key: not an RSA key")
	}
	return key, nil
}
