package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// DefaultSignatureTolerance bounds how old a signed delivery may be.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyPaddleSignature checks a Paddle-Signature header of the form
// "ts=<unix>;h1=<hex>" against HMAC-SHA256(secret, ts + ":" + body).
// A zero tolerance disables the timestamp check.
func VerifyPaddleSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time, tolerance time.Duration) error {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return ErrInvalidSignature
	}

	ts, signatures := parseSignatureHeader(signatureHeader)
	if ts == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}

	signed := make([]byte, 0, len(ts)+1+len(payload))
	signed = append(signed, ts...)
	signed = append(signed, ':')
	signed = append(signed, payload...)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(strings.ToLower(sig))
		if err != nil {
			continue
		}
		if verifyHMAC(signed, decoded, []byte(secret), sha256.New) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPaddlePayload builds a Paddle-Signature header value.
func SignPaddlePayload(payload []byte, webhookSecret string, ts time.Time) string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(stamp + ":"))
	mac.Write(payload)
	return "ts=" + stamp + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (string, []string) {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "h1":
			sigs = append(sigs, strings.TrimSpace(v))
		}
	}
	return ts, sigs
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
