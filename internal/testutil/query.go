package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Sternrassler/docdb-demos/pkg/document"
)

// The mock evaluates only the query shape the demos and helpers rely on:
//
//	SELECT * FROM <source> [<alias>] [WHERE <cond> {AND|OR <cond>}]
//	<cond> := <alias>.<path> <op> <literal | @param>
//
// AND binds tighter than OR. Anything else must be registered with
// MockDocDB.HandleQuery.

type pathStep struct {
	name  string
	index int // -1 for property steps
}

type condition struct {
	path    []pathStep
	op      string
	operand document.Value
}

// parsedQuery is a disjunction of conjunctions.
type parsedQuery struct {
	where [][]condition
}

type queryToken struct {
	kind string // "ident", "string", "number", "param", "op", "star"
	text string
}

func tokenizeQuery(text string) ([]queryToken, error) {
	var toks []queryToken
	rs := []rune(text)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*':
			toks = append(toks, queryToken{kind: "star", text: "*"})
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("unterminated string at %d", i)
			}
			toks = append(toks, queryToken{kind: "string", text: string(rs[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, queryToken{kind: "number", text: string(rs[i:j])})
			i = j
		case r == '@':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, queryToken{kind: "param", text: string(rs[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || strings.ContainsRune("_.[]", rs[j])) {
				j++
			}
			toks = append(toks, queryToken{kind: "ident", text: string(rs[i:j])})
			i = j
		case strings.ContainsRune("=!<>", r):
			j := i + 1
			if j < len(rs) && (rs[j] == '=' || (r == '<' && rs[j] == '>')) {
				j++
			}
			op := string(rs[i:j])
			if op == "<>" {
				op = "!="
			}
			if op == "!" {
				return nil, fmt.Errorf("unexpected '!' at %d", i)
			}
			toks = append(toks, queryToken{kind: "op", text: op})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at %d", r, i)
		}
	}
	return toks, nil
}

func parseQuery(text string, params map[string]document.Value) (*parsedQuery, error) {
	toks, err := tokenizeQuery(text)
	if err != nil {
		return nil, err
	}
	pos := 0
	next := func() (queryToken, bool) {
		if pos >= len(toks) {
			return queryToken{}, false
		}
		t := toks[pos]
		pos++
		return t, true
	}
	keyword := func(want string) bool {
		if pos < len(toks) && toks[pos].kind == "ident" && strings.EqualFold(toks[pos].text, want) {
			pos++
			return true
		}
		return false
	}

	if !keyword("SELECT") {
		return nil, fmt.Errorf("expected SELECT")
	}
	if t, ok := next(); !ok || t.kind != "star" {
		return nil, fmt.Errorf("only SELECT * is supported")
	}
	if !keyword("FROM") {
		return nil, fmt.Errorf("expected FROM")
	}
	src, ok := next()
	if !ok || src.kind != "ident" {
		return nil, fmt.Errorf("expected source after FROM")
	}
	alias := src.text
	if pos < len(toks) && toks[pos].kind == "ident" && !strings.EqualFold(toks[pos].text, "WHERE") {
		alias = toks[pos].text
		pos++
	}

	q := &parsedQuery{}
	if pos == len(toks) {
		return q, nil
	}
	if !keyword("WHERE") {
		return nil, fmt.Errorf("unsupported clause %q", toks[pos].text)
	}

	conj := []condition{}
	for {
		c, err := parseCondition(toks, &pos, alias, params)
		if err != nil {
			return nil, err
		}
		conj = append(conj, c)

		if pos == len(toks) {
			break
		}
		switch {
		case keyword("AND"):
		case keyword("OR"):
			q.where = append(q.where, conj)
			conj = []condition{}
		default:
			return nil, fmt.Errorf("unexpected %q", toks[pos].text)
		}
	}
	q.where = append(q.where, conj)
	return q, nil
}

func parseCondition(toks []queryToken, pos *int, alias string, params map[string]document.Value) (condition, error) {
	if *pos+3 > len(toks) {
		return condition{}, fmt.Errorf("incomplete condition")
	}
	lhs, op, rhs := toks[*pos], toks[*pos+1], toks[*pos+2]
	*pos += 3

	if lhs.kind != "ident" || op.kind != "op" {
		return condition{}, fmt.Errorf("condition must be <path> <op> <value>")
	}
	path, err := parsePath(lhs.text, alias)
	if err != nil {
		return condition{}, err
	}

	var operand document.Value
	switch rhs.kind {
	case "string":
		operand = document.String(rhs.text)
	case "number":
		operand, err = document.Decimal(rhs.text)
		if err != nil {
			return condition{}, err
		}
	case "param":
		v, ok := params[rhs.text]
		if !ok {
			return condition{}, fmt.Errorf("parameter %s not supplied", rhs.text)
		}
		operand = v
	case "ident":
		switch strings.ToLower(rhs.text) {
		case "true":
			operand = document.Bool(true)
		case "false":
			operand = document.Bool(false)
		case "null":
			operand = document.Null()
		default:
			return condition{}, fmt.Errorf("unsupported operand %q", rhs.text)
		}
	default:
		return condition{}, fmt.Errorf("unsupported operand %q", rhs.text)
	}

	return condition{path: path, op: op.text, operand: operand}, nil
}

// parsePath turns "f.Children[0].Grade" into steps below the alias.
func parsePath(text, alias string) ([]pathStep, error) {
	parts := strings.Split(text, ".")
	if parts[0] != alias {
		return nil, fmt.Errorf("path %q must start with %q", text, alias)
	}
	var steps []pathStep
	for _, part := range parts[1:] {
		name := part
		var indexes []int
		if i := strings.IndexByte(part, '['); i >= 0 {
			name = part[:i]
			for _, idx := range strings.Split(strings.TrimSuffix(part[i+1:], "]"), "][") {
				n, err := strconv.Atoi(idx)
				if err != nil {
					return nil, fmt.Errorf("bad index in %q", text)
				}
				indexes = append(indexes, n)
			}
		}
		if name == "" {
			return nil, fmt.Errorf("empty step in %q", text)
		}
		steps = append(steps, pathStep{name: name, index: -1})
		for _, n := range indexes {
			steps = append(steps, pathStep{index: n})
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("path %q selects the whole document", text)
	}
	return steps, nil
}

// indexPath renders the steps the way indexing policies spell paths.
func (c condition) indexPath() string {
	var b strings.Builder
	for _, s := range c.path {
		b.WriteByte('/')
		if s.index >= 0 {
			b.WriteString("[]")
			continue
		}
		b.WriteString(s.name)
	}
	return b.String()
}

func (c condition) isRange() bool {
	switch c.op {
	case "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (q *parsedQuery) conditions() []condition {
	var all []condition
	for _, conj := range q.where {
		all = append(all, conj...)
	}
	return all
}

func (q *parsedQuery) match(doc document.Value) bool {
	if len(q.where) == 0 {
		return true
	}
	for _, conj := range q.where {
		ok := true
		for _, c := range conj {
			if !c.match(doc) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c condition) match(doc document.Value) bool {
	cur := doc
	for _, s := range c.path {
		if s.index >= 0 {
			if cur.Kind() != document.KindArray || s.index >= cur.Len() {
				return false
			}
			cur = cur.Index(s.index)
			continue
		}
		next, ok := cur.Field(s.name)
		if !ok {
			return false
		}
		cur = next
	}

	cmp, ok := compareValues(cur, c.operand)
	if !ok {
		return false
	}
	switch c.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// compareValues orders two scalars of the same kind.
func compareValues(a, b document.Value) (int, bool) {
	if a.Kind() != b.Kind() {
		return 0, false
	}
	switch a.Kind() {
	case document.KindNumber:
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case document.KindString:
		x, _ := a.AsString()
		y, _ := b.AsString()
		return strings.Compare(x, y), true
	case document.KindBool:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	case document.KindNull:
		return 0, true
	}
	return 0, false
}
