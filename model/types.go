package model

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Separator divides the name and domain parts of a canonical account identifier.
const Separator = "@"

// ErrInvalidAccountID is returned when an identifier is not of the form name@domain.
var ErrInvalidAccountID = errors.New("invalid account id")

// RowID is a dense, index-local identifier for a record.
// It is transient and may change when an index is rebuilt from a checkpoint.
type RowID uint32

// AccountID identifies an account. The canonical form is name@domain.
//
// Both parts are non-empty and contain no separator, so the canonical
// form holds exactly one '@'.
type AccountID struct {
	Name   string
	Domain string
}

// NewAccountID validates and returns an AccountID.
func NewAccountID(name, domain string) (AccountID, error) {
	if err := validatePart("name", name); err != nil {
		return AccountID{}, err
	}
	if err := validatePart("domain", domain); err != nil {
		return AccountID{}, err
	}
	return AccountID{Name: name, Domain: domain}, nil
}

// ParseAccountID parses a canonical name@domain string.
func ParseAccountID(s string) (AccountID, error) {
	name, domain, ok := strings.Cut(s, Separator)
	if !ok {
		return AccountID{}, fmt.Errorf("%w: %q has no %q", ErrInvalidAccountID, s, Separator)
	}
	return NewAccountID(name, domain)
}

// MustParseAccountID is like ParseAccountID but panics on error.
// Intended for tests and constants.
func MustParseAccountID(s string) AccountID {
	id, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func validatePart(part, v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidAccountID, part)
	}
	if strings.Contains(v, Separator) {
		return fmt.Errorf("%w: %s %q contains %q", ErrInvalidAccountID, part, v, Separator)
	}
	return nil
}

// String returns the canonical name@domain form.
func (a AccountID) String() string {
	return a.Name + Separator + a.Domain
}

// IsZero reports whether a is the zero AccountID.
func (a AccountID) IsZero() bool {
	return a.Name == "" && a.Domain == ""
}

// Compare orders identifiers by their canonical byte representation.
func (a AccountID) Compare(b AccountID) int {
	return strings.Compare(a.String(), b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidAccountID)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Record is a registered account.
// Records are immutable once published in an index version.
type Record struct {
	ID  AccountID `json:"id"`
	Row RowID     `json:"-"`
	// LSN is the commit sequence number of the registration.
	LSN          uint64            `json:"lsn"`
	RegisteredAt time.Time         `json:"registered_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UnixNano returns t in unix nanoseconds. The zero time maps to 0, so an
// unset registration time survives persistence.
func UnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// FromUnixNano reverses UnixNano. Non-zero results are in UTC.
func FromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Clone returns a copy of r that shares no mutable state with it.
func (r Record) Clone() Record {
	r.Metadata = maps.Clone(r.Metadata)
	return r
}
