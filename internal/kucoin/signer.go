package kucoin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const keyVersion = "2"

type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// Signer produces KuCoin API key v2 headers.
type Signer struct {
	key        string
	secret     []byte
	passphrase string
	now        func() time.Time
}

func NewSigner(creds Credentials) (*Signer, error) {
	if creds.Key == "" || creds.Secret == "" || creds.Passphrase == "" {
		return nil, errors.New("kucoin: key, secret and passphrase are required")
	}
	secret := []byte(creds.Secret)
	return &Signer{
		key:        creds.Key,
		secret:     secret,
		passphrase: sign(secret, creds.Passphrase),
		now:        time.Now,
	}, nil
}

// Sign sets the auth headers on req. endpoint is the request path including
// its query string, body the exact bytes sent.
func (s *Signer) Sign(req *http.Request, endpoint string, body []byte) {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	req.Header.Set("KC-API-KEY", s.key)
	req.Header.Set("KC-API-SIGN", sign(s.secret, ts+req.Method+endpoint+string(body)))
	req.Header.Set("KC-API-TIMESTAMP", ts)
	req.Header.Set("KC-API-PASSPHRASE", s.passphrase)
	req.Header.Set("KC-API-KEY-VERSION", keyVersion)
}

func (s *Signer) String() string {
	return fmt.Sprintf("Signer{key=%s}", redact(s.key))
}

func sign(secret []byte, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
