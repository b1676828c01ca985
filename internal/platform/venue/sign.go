package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

const (
	headerTimestamp = "X-Arb-Timestamp"
	headerSignature = "X-Arb-Signature"
)

// signer adds HMAC request signatures. The signature is
// HMAC-SHA256(secret, timestamp+method+path+body) encoded as base64, with
// the timestamp in Unix seconds.
type signer struct {
	secret []byte
	now    func() time.Time
}

func newSigner(secret string) *signer {
	if secret == "" {
		return nil
	}
	return &signer{secret: []byte(secret), now: time.Now}
}

// sign sets the timestamp and signature headers on req.
func (s *signer) sign(req *http.Request, path string, body []byte) {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerSignature, signature(s.secret, ts, req.Method, path, body))
}

func signature(secret []byte, ts, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
