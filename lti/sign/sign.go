// Package sign implements OAuth 1.0 HMAC-SHA1 signing of LTI launch parameters,
// per RFC 5849. LTI transmits launches as signed form POSTs, with the OAuth
// protocol parameters carried in the form body rather than an Authorization
// header.
package sign

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OAuth protocol parameter names.
const (
	ConsumerKeyField     = "oauth_consumer_key"
	NonceField           = "oauth_nonce"
	SignatureField       = "oauth_signature"
	SignatureMethodField = "oauth_signature_method"
	TimestampField       = "oauth_timestamp"
	VersionField         = "oauth_version"
)

const (
	signatureMethodHMACSHA1 = "HMAC-SHA1"
	oauthVersion1           = "1.0"
)

// Signer produces signed launch parameters. The zero value uses a random nonce
// and the current time; both can be overridden for reproducible output.
type Signer struct {
	NonceFunc func() string
	TimeFunc  func() time.Time
}

// Sign returns a copy of params extended with the OAuth protocol parameters,
// including the signature, for an HTTP POST to url. The input map is not
// modified.
func (s Signer) Sign(key, secret string, params map[string]string, url string) map[string]string {
	signed := make(map[string]string, len(params)+6)
	for k, v := range params {
		signed[k] = v
	}
	signed[ConsumerKeyField] = key
	signed[SignatureMethodField] = signatureMethodHMACSHA1
	signed[VersionField] = oauthVersion1
	if _, ok := signed[NonceField]; !ok {
		signed[NonceField] = s.nonce()
	}
	if _, ok := signed[TimestampField]; !ok {
		signed[TimestampField] = strconv.FormatInt(s.now().Unix(), 10)
	}

	signed[SignatureField] = computeSignature(secret, "POST", url, signed)
	return signed
}

// Sign signs params with a random nonce and the current time.
func Sign(key, secret string, params map[string]string, url string) map[string]string {
	return Signer{}.Sign(key, secret, params, url)
}

// Verify recomputes the signature over params (which must include all the
// oauth_* parameters from the request, including oauth_signature) and reports
// whether it matches. The comparison is constant time.
func Verify(secret string, params map[string]string, url string) (bool, error) {
	given, ok := params[SignatureField]
	if !ok {
		return false, fmt.Errorf("%s not present", SignatureField)
	}
	expected := computeSignature(secret, "POST", url, params)
	return hmac.Equal([]byte(expected), []byte(given)), nil
}

// ExpectedSignature returns the signature that Verify would compare against,
// for diagnostic messages.
func ExpectedSignature(secret string, params map[string]string, url string) string {
	return computeSignature(secret, "POST", url, params)
}

func computeSignature(secret, method, url string, params map[string]string) string {
	base := BaseString(method, url, params)
	key := percentEncode(secret) + "&" // no token secret in two-legged LTI
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BaseString builds the RFC 5849 section 3.4.1 signature base string. The
// oauth_signature parameter, if present, is excluded.
func BaseString(method, url string, params map[string]string) string {
	// Section 3.4.1.3.2 orders by encoded name, then by encoded value. Sorting
	// the joined "name=value" strings is not the same thing: "=" sorts after
	// digits, so a name that extends another can come out ahead of it.
	type pair struct{ name, value string }
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		if k == SignatureField {
			continue
		}
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].value < pairs[j].value
	})

	joined := make([]string, 0, len(pairs))
	for _, p := range pairs {
		joined = append(joined, p.name+"="+p.value)
	}
	return strings.ToUpper(method) +
		"&" + percentEncode(normalizeURL(url)) +
		"&" + percentEncode(strings.Join(joined, "&"))
}

// normalizeURL strips the query and fragment; those parameters are signed via
// the parameter list instead.
func normalizeURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// percentEncode escapes per RFC 3986 section 2.1. Not the same as
// url.QueryEscape, which emits "+" for spaces and escapes "~".
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func (s Signer) nonce() string {
	if s.NonceFunc != nil {
		return s.NonceFunc()
	}
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf[:])
}

func (s Signer) now() time.Time {
	if s.TimeFunc != nil {
		return s.TimeFunc()
	}
	return time.Now()
}
