package filter

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ledgerq/model"
)

// MaxDepth bounds the nesting of composite expressions.
const MaxDepth = 32

// Expr is a filter expression over canonical account identifiers.
type Expr interface {
	// Match evaluates the expression against a canonical identifier.
	Match(id string) bool
	// String returns a stable textual form, usable as a cache key.
	String() string

	isExpr()
}

// Is matches exactly one canonical identifier.
type Is struct {
	ID string
}

// IsAccount returns an Is expression for id.
func IsAccount(id model.AccountID) Is { return Is{ID: id.String()} }

func (e Is) Match(id string) bool { return id == e.ID }
func (e Is) String() string       { return fmt.Sprintf("Is(%q)", e.ID) }
func (Is) isExpr()                {}

// StartsWith matches identifiers with the given byte prefix.
type StartsWith struct {
	Prefix string
}

func (e StartsWith) Match(id string) bool { return strings.HasPrefix(id, e.Prefix) }
func (e StartsWith) String() string       { return fmt.Sprintf("StartsWith(%q)", e.Prefix) }
func (StartsWith) isExpr()                {}

// EndsWith matches identifiers with the given byte suffix.
type EndsWith struct {
	Suffix string
}

func (e EndsWith) Match(id string) bool { return strings.HasSuffix(id, e.Suffix) }
func (e EndsWith) String() string       { return fmt.Sprintf("EndsWith(%q)", e.Suffix) }
func (EndsWith) isExpr()                {}

// Contains matches identifiers containing the given substring.
type Contains struct {
	Substring string
}

func (e Contains) Match(id string) bool { return strings.Contains(id, e.Substring) }
func (e Contains) String() string       { return fmt.Sprintf("Contains(%q)", e.Substring) }
func (Contains) isExpr()                {}

// And matches when every operand matches.
type And []Expr

func (e And) Match(id string) bool {
	for _, sub := range e {
		if !sub.Match(id) {
			return false
		}
	}
	return true
}

func (e And) String() string { return "And(" + joinExprs(e) + ")" }
func (And) isExpr()          {}

// Or matches when at least one operand matches.
type Or []Expr

func (e Or) Match(id string) bool {
	for _, sub := range e {
		if sub.Match(id) {
			return true
		}
	}
	return false
}

func (e Or) String() string { return "Or(" + joinExprs(e) + ")" }
func (Or) isExpr()          {}

// Not negates its operand.
type Not struct {
	Expr Expr
}

func (e Not) Match(id string) bool { return !e.Expr.Match(id) }
func (e Not) String() string       { return "Not(" + e.Expr.String() + ")" }
func (Not) isExpr()                {}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks the structural invariants of e: no nil nodes, no empty
// compositions and a nesting depth of at most MaxDepth.
func Validate(e Expr) error {
	return validate(e, "", 0)
}

func validate(e Expr, path string, depth int) error {
	if depth > MaxDepth {
		return malformed(path, "nesting deeper than %d", MaxDepth)
	}
	switch v := e.(type) {
	case nil:
		return malformed(path, "nil expression")
	case Is, StartsWith, EndsWith, Contains:
		return nil
	case And:
		return validateList("And", []Expr(v), path, depth)
	case Or:
		return validateList("Or", []Expr(v), path, depth)
	case Not:
		return validate(v.Expr, joinPath(path, "Not"), depth+1)
	default:
		return malformed(path, "unsupported expression %T", e)
	}
}

func validateList(op string, exprs []Expr, path string, depth int) error {
	p := joinPath(path, op)
	if len(exprs) == 0 {
		return malformed(p, "empty %s", op)
	}
	for i, sub := range exprs {
		if err := validate(sub, fmt.Sprintf("%s[%d]", p, i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}
