// Package auth computes master-key authorization tokens for the document
// service REST API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	// TokenType is the only token type supported.
	TokenType = "master"

	// TokenVersion is the token format version.
	TokenVersion = "1.0"
)

// DecodeKey decodes a base64 master key.
func DecodeKey(masterKey string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("master key is empty")
	}
	return key, nil
}

// Signature returns the base64 HMAC-SHA256 of the canonical request text.
// date is the x-ms-date header value as sent.
func Signature(key []byte, verb, resourceType, resourceLink, date string) string {
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceLink + "\n" +
		strings.ToLower(date) + "\n" +
		"\n"

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Token returns the URL-encoded authorization header value.
func Token(key []byte, verb, resourceType, resourceLink, date string) string {
	sig := Signature(key, verb, resourceType, resourceLink, date)
	return url.QueryEscape(fmt.Sprintf("type=%s&ver=%s&sig=%s", TokenType, TokenVersion, sig))
}

// ParseToken extracts the signature from an authorization header value.
func ParseToken(header string) (string, error) {
	raw, err := url.QueryUnescape(header)
	if err != nil {
		return "", fmt.Errorf("unescape token: %w", err)
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if values.Get("type") != TokenType {
		return "", fmt.Errorf("unsupported token type %q", values.Get("type"))
	}
	if values.Get("ver") != TokenVersion {
		return "", fmt.Errorf("unsupported token version %q", values.Get("ver"))
	}
	sig := values.Get("sig")
	if sig == "" {
		return "", fmt.Errorf("token has no signature")
	}
	return sig, nil
}

// Verify reports whether header is a valid token for the request.
func Verify(key []byte, header, verb, resourceType, resourceLink, date string) bool {
	sig, err := ParseToken(header)
	if err != nil {
		return false
	}
	want := Signature(key, verb, resourceType, resourceLink, date)
	return hmac.Equal([]byte(sig), []byte(want))
}

// Resource splits a request path into the resource type and resource link
// used in the signature.
//
//	dbs                      -> ("dbs", "")
//	dbs/Demo                 -> ("dbs", "dbs/Demo")
//	dbs/Demo/colls           -> ("colls", "dbs/Demo")
//	dbs/Demo/colls/Test/docs -> ("docs", "dbs/Demo/colls/Test")
func Resource(path string) (resourceType, resourceLink string) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ""
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 == 1 {
		return segs[len(segs)-1], strings.Join(segs[:len(segs)-1], "/")
	}
	return segs[len(segs)-2], path
}
