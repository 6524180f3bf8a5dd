package mpesa

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// TimestampLayout is the YYYYMMDDhhmmss form the gateway expects
const TimestampLayout = "20060102150405"

// DeriveSecurityCredential computes the per-request password:
// base64 of the lowercase hex SHA-256 of secret+passKey+timestamp.
// The concatenation order is part of the protocol.
func DeriveSecurityCredential(secret, passKey, timestamp string) string {
	sum := sha256.Sum256([]byte(secret + passKey + timestamp))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}

// Timestamp formats t in loc using TimestampLayout. A nil loc means local time.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimestampLayout)
}
