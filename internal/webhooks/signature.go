package webhooks

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
)

// ComputeSignature reproduces the provider's request signature: the full
// request URL with each form parameter's name and value appended in
// lexicographic key order, HMAC-SHA1 signed with the account's auth token,
// base64 encoded.
func ComputeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares in constant time.
func ValidSignature(authToken, url string, params map[string]string, signature string) bool {
	want := ComputeSignature(authToken, url, params)
	return hmac.Equal([]byte(want), []byte(signature))
}
