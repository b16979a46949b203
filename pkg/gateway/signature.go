package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureMissing  = errors.New("webhook signature missing")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrSignatureExpired  = errors.New("webhook signature timestamp outside tolerance")
)

// Signature is the parsed x-signature header ("ts=<unix ms>,v1=<hex hmac>").
type Signature struct {
	Timestamp string
	V1        string
}

// ParseSignatureHeader splits the x-signature header into its parts.
func ParseSignatureHeader(header string) (Signature, error) {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			sig.Timestamp = strings.TrimSpace(value)
		case "v1":
			sig.V1 = strings.TrimSpace(value)
		}
	}
	if sig.Timestamp == "" || sig.V1 == "" {
		return Signature{}, ErrSignatureMissing
	}
	return sig, nil
}

// SignatureManifest builds the string the gateway signs for a notification.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(dataID))
	}
	if requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	fmt.Fprintf(&b, "ts:%s;", ts)
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of the manifest.
func Sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the x-signature header against the notification data id
// and x-request-id. A zero tolerance disables the timestamp window check.
func VerifySignature(secret, header, requestID, dataID string, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(header) == "" {
		return ErrSignatureMissing
	}
	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	expected := Sign(secret, SignatureManifest(dataID, requestID, sig.Timestamp))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig.V1))) {
		return ErrSignatureMismatch
	}

	if tolerance > 0 {
		ts, err := strconv.ParseInt(sig.Timestamp, 10, 64)
		if err != nil {
			return ErrSignatureMismatch
		}
		// timestamps arrive in milliseconds
		signedAt := time.UnixMilli(ts)
		if ts < 1e12 {
			signedAt = time.Unix(ts, 0)
		}
		if now.Sub(signedAt).Abs() > tolerance {
			return ErrSignatureExpired
		}
	}
	return nil
}
