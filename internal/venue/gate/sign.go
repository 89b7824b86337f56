package gate

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// sign applies the Gate v4 APIv4 signature scheme:
// HMAC-SHA512(secret, method\npath\nquery\nSHA512(body)\ntimestamp).
func (a *Adapter) sign(req *http.Request, body string) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	bodyHash := sha512.Sum512([]byte(body))
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		req.Method,
		req.URL.Path,
		req.URL.RawQuery,
		hex.EncodeToString(bodyHash[:]),
		ts,
	)
	mac := hmac.New(sha512.New, []byte(a.acct.APISecret))
	mac.Write([]byte(payload))
	req.Header.Set("KEY", a.acct.APIKey)
	req.Header.Set("Timestamp", ts)
	req.Header.Set("SIGN", hex.EncodeToString(mac.Sum(nil)))
}
