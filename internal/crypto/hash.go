// Package crypto holds the integrity-hash and score-payload cipher
// primitives. Callers treat these as opaque; key management stays with
// the session layer.
package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DayStamp buckets time into 48-hour windows so a hash computed late in
// the evening still validates the next day.
func DayStamp(t time.Time) int64 {
	return t.Unix() / (48 * 3600)
}

// SessionHash is the keyed hash compared against the server-supplied hash
// to detect tampering of cached session/user data.
func SessionHash(siteKey string, siteID, userID int, userName, siteUserID string, accessLevel int, t time.Time) string {
	return RecordHash(siteKey,
		strconv.Itoa(siteID),
		strconv.Itoa(userID),
		strconv.FormatInt(DayStamp(t), 10),
		userName,
		siteUserID,
		strconv.Itoa(accessLevel),
	)
}

// RecordHash computes an HMAC-MD5 over the given fields joined with a
// separator that cannot appear inside a field without changing the hash.
func RecordHash(siteKey string, fields ...string) string {
	mac := hmac.New(md5.New, []byte(siteKey))
	mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
