package rowio

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SelectionError is returned for selections that cannot be parsed or do not match the headers.
type SelectionError struct {
	Selection string
	Reason    string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection '%s': %s", e.Selection, e.Reason)
}

type boundKind int

const (
	boundIndex boundKind = iota
	boundLast
	boundName
)

// one end of a selector, or a whole single column selector
type bound struct {
	kind  boundKind
	index int // 1-based
	name  string
	nth   int // occurrence of name among duplicate headers, 0-based
}

type selector struct {
	start, end *bound
	isRange    bool
	pattern    *regexp.Regexp
}

// Selection is a parsed column selection, resolved against a header row with Resolve.
type Selection struct {
	raw    string
	invert bool
	items  []selector
}

type selParser struct {
	s   string
	pos int
}

func (p *selParser) done() bool { return p.pos >= len(p.s) }
func (p *selParser) peek() byte { return p.s[p.pos] }

// ParseSelection parses a comma separated list of columns.
//
//	1,3        columns by 1-based index
//	_          last column
//	name       column by header name, "quoted" if it contains , - or "
//	name[1]    second column called name
//	2-4 a-c    inclusive ranges of indices or names, either end may be omitted, may run backwards
//	/re/       every column whose name matches the regular expression
//	!sel       every column not in sel
func ParseSelection(s string) (*Selection, error) {
	sel := &Selection{raw: s}
	body := s
	if strings.HasPrefix(body, "!") {
		sel.invert = true
		body = body[1:]
	}
	if body == "" {
		return nil, &SelectionError{s, "empty selection"}
	}
	p := &selParser{s: body}
	for {
		item, err := p.item()
		if err != nil {
			return nil, &SelectionError{s, err.Error()}
		}
		sel.items = append(sel.items, item)
		if p.done() {
			break
		}
		if p.peek() != ',' {
			return nil, &SelectionError{s, fmt.Sprintf("unexpected '%c' at position %d", p.peek(), p.pos+1)}
		}
		p.pos++
	}
	return sel, nil
}

func (p *selParser) item() (selector, error) {
	if !p.done() && p.peek() == '/' {
		return p.regex()
	}
	start, err := p.bound()
	if err != nil {
		return selector{}, err
	}
	if p.done() || p.peek() != '-' {
		if start == nil {
			return selector{}, fmt.Errorf("empty selector at position %d", p.pos+1)
		}
		return selector{start: start}, nil
	}
	p.pos++
	end, err := p.bound()
	if err != nil {
		return selector{}, err
	}
	if start == nil && end == nil {
		return selector{}, fmt.Errorf("range at position %d has no ends", p.pos)
	}
	return selector{start: start, end: end, isRange: true}, nil
}

func (p *selParser) regex() (selector, error) {
	p.pos++
	var b strings.Builder
	for !p.done() {
		c := p.peek()
		p.pos++
		if c == '\\' && !p.done() && p.peek() == '/' {
			b.WriteByte('/')
			p.pos++
			continue
		}
		if c == '/' {
			re, err := regexp.Compile(b.String())
			if err != nil {
				return selector{}, err
			}
			return selector{pattern: re}, nil
		}
		b.WriteByte(c)
	}
	return selector{}, fmt.Errorf("unterminated regex")
}

// bound returns nil when the next character ends the bound immediately.
func (p *selParser) bound() (*bound, error) {
	if p.done() || p.peek() == ',' || p.peek() == '-' {
		return nil, nil
	}
	var name string
	quoted := p.peek() == '"'
	if quoted {
		p.pos++
		var b strings.Builder
		closed := false
		for !p.done() {
			c := p.peek()
			p.pos++
			if c == '"' {
				if !p.done() && p.peek() == '"' {
					b.WriteByte('"')
					p.pos++
					continue
				}
				closed = true
				break
			}
			b.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("unterminated quoted name")
		}
		name = b.String()
	} else {
		start := p.pos
		for !p.done() && !strings.ContainsRune(",-[", rune(p.peek())) {
			p.pos++
		}
		name = p.s[start:p.pos]
	}

	b := &bound{kind: boundName, name: name}
	if !p.done() && p.peek() == '[' {
		end := strings.IndexByte(p.s[p.pos:], ']')
		if end < 0 {
			return nil, fmt.Errorf("missing ']' after '%s'", name)
		}
		nth, err := strconv.Atoi(p.s[p.pos+1 : p.pos+end])
		if err != nil || nth < 0 {
			return nil, fmt.Errorf("invalid occurrence '%s'", p.s[p.pos+1:p.pos+end])
		}
		b.nth = nth
		p.pos += end + 1
		return b, nil
	}
	if quoted {
		return b, nil
	}
	if name == "_" {
		return &bound{kind: boundLast}, nil
	}
	if idx, err := strconv.Atoi(name); err == nil {
		if idx < 1 {
			return nil, fmt.Errorf("column indices start at 1, got %d", idx)
		}
		return &bound{kind: boundIndex, index: idx}, nil
	}
	return b, nil
}

// column returns the 0-based column for b.
func (b *bound) column(headers []string, noHeaders bool) (int, error) {
	switch b.kind {
	case boundLast:
		if len(headers) == 0 {
			return 0, fmt.Errorf("no columns to select")
		}
		return len(headers) - 1, nil
	case boundIndex:
		if b.index > len(headers) {
			return 0, fmt.Errorf("selector index %d is out of bounds, must be between 1 and %d", b.index, len(headers))
		}
		return b.index - 1, nil
	}
	if noHeaders {
		return 0, fmt.Errorf("cannot select '%s' by name without headers", b.name)
	}
	seen := 0
	for i, h := range headers {
		if h != b.name {
			continue
		}
		if seen == b.nth {
			return i, nil
		}
		seen++
	}
	if b.nth > 0 {
		return 0, fmt.Errorf("header '%s' occurs %d times, cannot select occurrence %d", b.name, seen, b.nth)
	}
	return 0, fmt.Errorf("header '%s' not found", b.name)
}

// Resolve returns the 0-based columns of headers the selection picks, in selection order.
// Without headers only indices are usable and headers is just the first record.
func (s *Selection) Resolve(headers []string, noHeaders bool) ([]int, error) {
	var cols []int
	for _, item := range s.items {
		picked, err := item.resolve(headers, noHeaders)
		if err != nil {
			return nil, &SelectionError{s.raw, err.Error()}
		}
		cols = append(cols, picked...)
	}
	if !s.invert {
		return cols, nil
	}
	excluded := make(map[int]bool, len(cols))
	for _, c := range cols {
		excluded[c] = true
	}
	var inverted []int
	for i := range headers {
		if !excluded[i] {
			inverted = append(inverted, i)
		}
	}
	if len(inverted) == 0 {
		return nil, &SelectionError{s.raw, "every column is excluded"}
	}
	return inverted, nil
}

func (sel selector) resolve(headers []string, noHeaders bool) ([]int, error) {
	if sel.pattern != nil {
		if noHeaders {
			return nil, fmt.Errorf("cannot select /%s/ without headers", sel.pattern)
		}
		var cols []int
		for i, h := range headers {
			if sel.pattern.MatchString(h) {
				cols = append(cols, i)
			}
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("no headers match /%s/", sel.pattern)
		}
		return cols, nil
	}
	if !sel.isRange {
		c, err := sel.start.column(headers, noHeaders)
		if err != nil {
			return nil, err
		}
		return []int{c}, nil
	}

	if len(headers) == 0 {
		return nil, fmt.Errorf("no columns to select")
	}
	first, last := 0, len(headers)-1
	var err error
	if sel.start != nil {
		if first, err = sel.start.column(headers, noHeaders); err != nil {
			return nil, err
		}
	}
	if sel.end != nil {
		if last, err = sel.end.column(headers, noHeaders); err != nil {
			return nil, err
		}
	}
	var cols []int
	if first <= last {
		for i := first; i <= last; i++ {
			cols = append(cols, i)
		}
	} else {
		for i := first; i >= last; i-- {
			cols = append(cols, i)
		}
	}
	return cols, nil
}

// String returns the selection as given.
func (s *Selection) String() string {
	return s.raw
}
