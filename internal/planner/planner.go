package planner

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/internal/identindex"
	"github.com/hupe1980/ledgerq/model"
)

// Access identifies how a plan node reads the index.
type Access uint8

const (
	AccessScan Access = iota
	AccessExact
	AccessPrefix
	AccessSuffix
	AccessUnion
)

func (a Access) String() string {
	switch a {
	case AccessExact:
		return "exact"
	case AccessPrefix:
		return "prefix"
	case AccessSuffix:
		return "suffix"
	case AccessUnion:
		return "union"
	default:
		return "scan"
	}
}

type node struct {
	access   Access
	key      string
	children []*node
	// residual is checked against every candidate; nil accepts all.
	residual filter.Expr
}

// Plan is an executable access plan. Plans are immutable and may be
// executed concurrently against different versions.
type Plan struct {
	expr filter.Expr
	root *node
}

// Build plans expr. It never fails: expressions that no index can serve
// fall back to a scan. Callers validate expr beforehand.
func Build(expr filter.Expr) *Plan {
	return &Plan{expr: expr, root: build(expr)}
}

func build(expr filter.Expr) *node {
	switch e := expr.(type) {
	case filter.Is:
		return &node{access: AccessExact, key: e.ID}
	case filter.StartsWith:
		return &node{access: AccessPrefix, key: e.Prefix}
	case filter.EndsWith:
		return &node{access: AccessSuffix, key: e.Suffix}
	case filter.And:
		return buildAnd(flatten(e, true))
	case filter.Or:
		return buildOr(e, flatten(e, false))
	default:
		return &node{access: AccessScan, residual: expr}
	}
}

// flatten inlines nested operands of the same kind.
func flatten(exprs []filter.Expr, and bool) []filter.Expr {
	out := make([]filter.Expr, 0, len(exprs))
	for _, sub := range exprs {
		switch s := sub.(type) {
		case filter.And:
			if and {
				out = append(out, flatten(s, true)...)
				continue
			}
		case filter.Or:
			if !and {
				out = append(out, flatten(s, false)...)
				continue
			}
		}
		out = append(out, sub)
	}
	return out
}

func buildAnd(operands []filter.Expr) *node {
	if len(operands) == 1 {
		return build(operands[0])
	}

	driver := -1
	var best *node
	for i, sub := range operands {
		n := build(sub)
		if rank(n) > rank(best) {
			driver, best = i, n
		}
	}
	if best == nil || best.access == AccessScan {
		return &node{access: AccessScan, residual: filter.And(operands)}
	}

	rest := make([]filter.Expr, 0, len(operands)-1)
	rest = append(rest, operands[:driver]...)
	rest = append(rest, operands[driver+1:]...)
	best.residual = conjoin(best.residual, rest)
	return best
}

func conjoin(residual filter.Expr, rest []filter.Expr) filter.Expr {
	if residual != nil {
		rest = append([]filter.Expr{residual}, rest...)
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return filter.And(rest)
}

// rank orders candidate drivers: exact lookups first, then range scans by
// key length, then unions.
func rank(n *node) int {
	if n == nil {
		return -1
	}
	switch n.access {
	case AccessExact:
		return 1 << 30
	case AccessPrefix, AccessSuffix:
		return 2 + len(n.key)
	case AccessUnion:
		return 1
	default:
		return 0
	}
}

func buildOr(expr filter.Or, operands []filter.Expr) *node {
	if len(operands) == 1 {
		return build(operands[0])
	}
	children := make([]*node, 0, len(operands))
	for _, sub := range operands {
		n := build(sub)
		if n.access == AccessScan {
			return &node{access: AccessScan, residual: expr}
		}
		children = append(children, n)
	}
	return &node{access: AccessUnion, children: children}
}

// Access returns the access path of the plan root.
func (p *Plan) Access() Access { return p.root.access }

// Key returns a stable identifier of the plan, suitable as a cache key.
func (p *Plan) Key() string { return p.expr.String() }

// String explains the plan.
func (p *Plan) String() string {
	var sb strings.Builder
	explain(&sb, p.root)
	return sb.String()
}

func explain(sb *strings.Builder, n *node) {
	sb.WriteString(n.access.String())
	switch n.access {
	case AccessExact, AccessPrefix, AccessSuffix:
		fmt.Fprintf(sb, "(%q)", n.key)
	case AccessUnion:
		sb.WriteString("(")
		for i, c := range n.children {
			if i > 0 {
				sb.WriteString(", ")
			}
			explain(sb, c)
		}
		sb.WriteString(")")
	}
	if n.residual != nil {
		sb.WriteString(" filter ")
		sb.WriteString(n.residual.String())
	}
}

// Execute runs the plan against v.
// The returned records belong to v and must not be modified.
func (p *Plan) Execute(v *identindex.Version) []*model.Record {
	return execute(v, p.root)
}

func execute(v *identindex.Version, n *node) []*model.Record {
	var out []*model.Record
	switch n.access {
	case AccessExact:
		if r, ok := v.Get(n.key); ok && accept(n, r) {
			out = append(out, r)
		}
		return out
	case AccessPrefix:
		for r := range v.LookupPrefix(n.key) {
			if accept(n, r) {
				out = append(out, r)
			}
		}
		return out
	case AccessSuffix:
		for r := range v.LookupSuffix(n.key) {
			if accept(n, r) {
				out = append(out, r)
			}
		}
		sortForward(out)
		return out
	case AccessUnion:
		seen := roaring.New()
		for _, c := range n.children {
			for _, r := range execute(v, c) {
				if seen.CheckedAdd(uint32(r.Row)) && accept(n, r) {
					out = append(out, r)
				}
			}
		}
		sortForward(out)
		return out
	default:
		for r := range v.Scan() {
			if accept(n, r) {
				out = append(out, r)
			}
		}
		return out
	}
}

func accept(n *node, r *model.Record) bool {
	return n.residual == nil || n.residual.Match(r.ID.String())
}

func sortForward(records []*model.Record) {
	if len(records) < 2 {
		return
	}
	keys := make(map[*model.Record]string, len(records))
	for _, r := range records {
		keys[r] = r.ID.String()
	}
	slices.SortFunc(records, func(a, b *model.Record) int {
		return strings.Compare(keys[a], keys[b])
	})
}
