package entity

import (
	"regexp"
	"strconv"
	"strings"
)

// Key addresses an entity or one of its members: "Kind/Id[/Member]".
type Key string

// keySeparator splits the segments of a Key.
const keySeparator = "/"

// referencePattern is the shape a stored string must have to be loaded
// as a Reference rather than a Literal.
var referencePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*/-?[0-9]+(/.+)?$`)

// KeyParts are the segments of a Key.
type KeyParts struct {
	Kind      Kind
	ID        string
	Member    string
	HasMember bool
}

// ParseKey splits k into kind, id and member. Segments after the member
// are ignored, and an empty member means none. ok is false when k contains
// no "/" at all.
func ParseKey(k string) (parts KeyParts, ok bool) {
	if !strings.Contains(k, keySeparator) {
		return KeyParts{}, false
	}

	segments := strings.Split(k, keySeparator)
	parts.Kind = Kind(segments[0])
	parts.ID = segments[1]
	if len(segments) > 2 && segments[2] != "" {
		parts.Member = segments[2]
		parts.HasMember = true
	}
	return parts, true
}

// IsReferenceShape reports whether s looks like "<Kind>/<integer>[/<member>]".
func IsReferenceShape(s string) bool {
	return referencePattern.MatchString(s)
}

// FormatKey builds a Key from its parts. An empty member is omitted.
func FormatKey(kind Kind, id int64, member string) Key {
	k := string(kind) + keySeparator + strconv.FormatInt(id, 10)
	if member != "" {
		k += keySeparator + member
	}
	return Key(k)
}

// String returns the key text.
func (k Key) String() string { return string(k) }
