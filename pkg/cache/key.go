package cache

import "strings"

// Kind separates the representations stored for a link.
type Kind string

const (
	KindDocument Kind = "doc"
	KindMedia    Kind = "media"
)

// Key addresses a stored read.
type Key struct {
	Kind Kind
	Link string
}

// DocumentKey returns the key for the document at link.
func DocumentKey(link string) Key { return Key{Kind: KindDocument, Link: link} }

// MediaKey returns the key for attachment media at link.
func MediaKey(link string) Key { return Key{Kind: KindMedia, Link: link} }

// redisKey renders the key as docdb:<kind>:<link>, with the link's leading
// and trailing slashes removed so "dbs/a" and "/dbs/a/" share an entry.
func (k Key) redisKey(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(string(k.Kind))
	b.WriteByte(':')
	b.WriteString(strings.Trim(k.Link, "/"))
	return b.String()
}
