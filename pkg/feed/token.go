package feed

// Token is a service-issued continuation cursor.
//
// A Token cannot be built or inspected outside this package except through
// IssueToken and Wire, which exist for transport code that moves tokens to
// and from the wire. Consumers may only ask whether it is empty.
type Token struct {
	raw string
}

// IssueToken wraps a raw continuation value received from the service.
func IssueToken(raw string) Token {
	return Token{raw: raw}
}

// IsEmpty reports whether the token marks the end of the feed (or the start
// of a new one, when used in a request).
func (t Token) IsEmpty() bool {
	return t.raw == ""
}

// Wire returns the raw value to send back to the service.
func (t Token) Wire() string {
	return t.raw
}

// String hides the token value from logs and error messages.
func (t Token) String() string {
	if t.IsEmpty() {
		return "<none>"
	}
	return "<token>"
}

// MarshalText lets a caller persist a token and resume the feed later,
// possibly from another process.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.raw), nil
}

// UnmarshalText restores a token saved with MarshalText.
func (t *Token) UnmarshalText(text []byte) error {
	t.raw = string(text)
	return nil
}
