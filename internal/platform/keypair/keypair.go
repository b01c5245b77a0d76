// Package keypair implements key-pair authentication for the warehouse REST
// API: a private key on disk is exchanged for a short-lived signed assertion
// whose issuer embeds the SHA-256 fingerprint of the public key.
package keypair

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrKeyLoad marks any failure to load or parse the private key: unset path,
// missing file, or malformed key material.
var ErrKeyLoad = errors.New("private key load failed")

// TokenLifetime is the validity window of an issued assertion. The API caps
// assertions at one hour; one minute of slack avoids clock-skew rejections.
const TokenLifetime = 59 * time.Minute

// Load reads an unencrypted PEM private key from path. A leading "~" is
// expanded to the user's home directory.
func Load(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: key path not configured", ErrKeyLoad)
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve home directory: %v", ErrKeyLoad, err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrKeyLoad, path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA key", ErrKeyLoad, path)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrKeyLoad, path, err)
	}
	return key, nil
}

// CleanAccount normalizes an account identifier for use in assertion claims:
// unless the identifier is a ".global" one, everything after the first dot is
// dropped; remaining dots become dashes; the result is upper-cased.
func CleanAccount(account string) string {
	if !strings.Contains(account, ".global") {
		if idx := strings.Index(account, "."); idx > 0 {
			account = account[:idx]
		}
	}
	account = strings.ReplaceAll(account, ".", "-")
	return strings.ToUpper(account)
}

// Fingerprint computes the public-key fingerprint the API expects in the
// issuer claim: SHA-256 over the DER-encoded SubjectPublicKeyInfo,
// base64-encoded, prefixed with "SHA256:".
func Fingerprint(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Token builds and signs the key-pair assertion for the given principal.
// issuer = ACCOUNT.USER.fingerprint, subject = ACCOUNT.USER, valid from now
// for TokenLifetime, signed RS256.
func Token(key *rsa.PrivateKey, account, user string, now time.Time) (string, error) {
	fp, err := Fingerprint(key)
	if err != nil {
		return "", err
	}

	cleanAccount := CleanAccount(account)
	upperUser := strings.ToUpper(user)
	now = now.UTC()

	claims := jwt.MapClaims{
		"iss": fmt.Sprintf("%s.%s.%s", cleanAccount, upperUser, fp),
		"sub": fmt.Sprintf("%s.%s", cleanAccount, upperUser),
		"iat": now.Unix(),
		"exp": now.Add(TokenLifetime).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return token, nil
}
