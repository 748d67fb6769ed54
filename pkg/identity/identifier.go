package identity

import "strconv"

// Identifier is a tagged union addressing an entity either by integer ID or
// by exact-match name/email. It is constructed once at the request boundary;
// everything below dispatches on the tag instead of re-parsing strings.
type Identifier struct {
	id   int64
	name string
	byID bool
}

// ByID creates an identifier addressing an entity by its integer ID
func ByID(id int64) Identifier {
	return Identifier{id: id, byID: true}
}

// ByName creates an identifier addressing an entity by exact name or email
func ByName(name string) Identifier {
	return Identifier{name: name}
}

// ParseIdentifier interprets a raw path segment: values that parse as
// integers address by ID, everything else addresses by exact name
func ParseIdentifier(raw string) Identifier {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ByID(id)
	}
	return ByName(raw)
}

// IsID reports whether the identifier addresses by integer ID
func (i Identifier) IsID() bool {
	return i.byID
}

// ID returns the integer ID; only meaningful when IsID is true
func (i Identifier) ID() int64 {
	return i.id
}

// Name returns the name; only meaningful when IsID is false
func (i Identifier) Name() string {
	return i.name
}

func (i Identifier) String() string {
	if i.byID {
		return strconv.FormatInt(i.id, 10)
	}
	return i.name
}
