package xmltok

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/openvmd/vmp/xmlutil"
)

// Attr is a single attribute of a start element. Name is kept verbatim;
// consumers fold it as required.
type Attr struct {
	Name  string
	Value string
}

// Sink receives tokenizer events. A non-nil error returned from any
// callback stops tokenizing and is returned from Feed unchanged.
//
// Text may be called multiple times for one logical run of character
// data when the run spans chunk boundaries; receivers must append.
type Sink interface {
	StartElement(name string, attrs []Attr) error
	EndElement(name string) error
	Text(data []byte) error
}

// SyntaxError describes malformed XML input. It is fatal to the stream.
type SyntaxError struct {
	Offset  int64
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("xmltok: %s at input offset %d", e.Message, e.Offset)
}

// Tokenizer is a resumable XML push tokenizer. See the package
// documentation for the Feed contract.
type Tokenizer struct {
	sink Sink
	buf  []byte
	base int64    // stream offset of buf[0]
	open []string // folded names of currently open elements
	dead bool     // set after a syntax error; further Feeds are rejected
}

// New returns a Tokenizer delivering events to sink.
func New(sink Sink) *Tokenizer {
	if sink == nil {
		panic("xmltok: nil Sink")
	}
	return &Tokenizer{sink: sink}
}

// Depth returns the number of currently open elements.
func (t *Tokenizer) Depth() int { return len(t.open) }

// Feed appends p to the internal buffer and tokenizes every complete
// construct found. A partial trailing construct is retained for the
// next call. Sink errors and *SyntaxError values are returned as-is;
// after a *SyntaxError the Tokenizer is unusable.
func (t *Tokenizer) Feed(p []byte) error {
	if t.dead {
		return t.fail(0, "input after syntax error")
	}
	t.buf = append(t.buf, p...)
	for len(t.buf) > 0 {
		var n int
		var err error
		if t.buf[0] == '<' {
			n, err = t.scanMarkup()
		} else {
			n, err = t.scanText()
		}
		// a construct is consumed even when the sink rejected it, so
		// the caller never re-feeds input already delivered
		if n > 0 {
			t.base += int64(n)
			t.buf = t.buf[n:]
		}
		if err != nil {
			return err
		}
		if n == 0 {
			// incomplete construct, wait for more input
			return nil
		}
	}
	return nil
}

// Close declares end of input. It fails if a construct or element
// remains open.
func (t *Tokenizer) Close() error {
	if t.dead {
		return t.fail(0, "input after syntax error")
	}
	if len(bytes.TrimSpace(t.buf)) > 0 {
		return t.fail(0, "unexpected end of input inside a construct")
	}
	if n := len(t.open); n > 0 {
		return t.fail(0, "unexpected end of input with <"+t.open[n-1]+"> unclosed")
	}
	return nil
}

func (t *Tokenizer) fail(rel int, msg string) error {
	t.dead = true
	return &SyntaxError{Offset: t.base + int64(rel), Message: msg}
}

// scanText consumes character data up to the next '<'. A trailing
// entity reference without its terminating ';' is held back in case
// the remainder arrives in a later chunk.
func (t *Tokenizer) scanText() (int, error) {
	raw := t.buf
	idx := bytes.IndexByte(raw, '<')
	if idx >= 0 {
		raw = raw[:idx]
	} else if amp := bytes.LastIndexByte(raw, '&'); amp >= 0 && bytes.IndexByte(raw[amp:], ';') < 0 {
		raw = raw[:amp]
		if len(raw) == 0 {
			return 0, nil
		}
	}
	text, err := t.unescape(raw, 0)
	if err != nil {
		return 0, err
	}
	if len(t.open) == 0 {
		if len(bytes.TrimSpace(text)) > 0 {
			return 0, t.fail(0, "character data outside of any element")
		}
		return len(raw), nil
	}
	if len(text) > 0 {
		if err := t.sink.Text(text); err != nil {
			return len(raw), err
		}
	}
	return len(raw), nil
}

// scanMarkup consumes one construct beginning with '<'. It returns
// (0, nil) when the construct is not yet complete in the buffer.
func (t *Tokenizer) scanMarkup() (int, error) {
	b := t.buf
	switch {
	case hasOrMayGrowPrefix(b, "<!--"):
		if !bytes.HasPrefix(b, []byte("<!--")) {
			return 0, nil
		}
		end := bytes.Index(b[4:], []byte("-->"))
		if end < 0 {
			return 0, nil
		}
		return 4 + end + 3, nil

	case hasOrMayGrowPrefix(b, "<![CDATA["):
		if !bytes.HasPrefix(b, []byte("<![CDATA[")) {
			return 0, nil
		}
		end := bytes.Index(b[9:], []byte("]]>"))
		if end < 0 {
			return 0, nil
		}
		if len(t.open) == 0 {
			if len(bytes.TrimSpace(b[9:9+end])) > 0 {
				return 0, t.fail(0, "character data outside of any element")
			}
			return 9 + end + 3, nil
		}
		if data := b[9 : 9+end]; len(data) > 0 {
			if err := t.sink.Text(data); err != nil {
				return 9 + end + 3, err
			}
		}
		return 9 + end + 3, nil

	case bytes.HasPrefix(b, []byte("<?")):
		end := bytes.Index(b[2:], []byte("?>"))
		if end < 0 {
			return 0, nil
		}
		return 2 + end + 2, nil

	case bytes.HasPrefix(b, []byte("<!")):
		// markup declarations (DOCTYPE etc.) are not part of the protocol
		return 0, t.fail(0, "unsupported markup declaration")

	case bytes.HasPrefix(b, []byte("</")):
		end := bytes.IndexByte(b, '>')
		if end < 0 {
			return 0, nil
		}
		name := string(bytes.TrimSpace(b[2:end]))
		if !validName(name) {
			return 0, t.fail(0, "malformed end tag")
		}
		if len(t.open) == 0 {
			return 0, t.fail(0, "unexpected end tag </"+name+">")
		}
		if top := t.open[len(t.open)-1]; !xmlutil.NameEq(top, name) {
			return 0, t.fail(0, "end tag </"+name+"> does not match <"+top+">")
		}
		t.open = t.open[:len(t.open)-1]
		if err := t.sink.EndElement(name); err != nil {
			return end + 1, err
		}
		return end + 1, nil

	default:
		return t.scanStartTag()
	}
}

func (t *Tokenizer) scanStartTag() (int, error) {
	b := t.buf
	end, complete := findTagEnd(b)
	if !complete {
		return 0, nil
	}
	inner := b[1:end] // between '<' and '>'
	selfClose := false
	if n := len(inner); n > 0 && inner[n-1] == '/' {
		selfClose = true
		inner = inner[:n-1]
	}
	name, rest, err := t.takeName(inner, 1)
	if err != nil {
		return 0, err
	}
	attrs, err := t.parseAttrs(rest, 1+len(name))
	if err != nil {
		return 0, err
	}
	if !selfClose {
		t.open = append(t.open, xmlutil.Fold(name))
	}
	err = t.sink.StartElement(name, attrs)
	if selfClose {
		// the end event is delivered even when the start callback
		// failed, so sinks tracking balance stay consistent across
		// recoverable errors
		if eerr := t.sink.EndElement(name); err == nil {
			err = eerr
		}
	}
	return end + 1, err
}

// takeName splits a leading XML name off b.
func (t *Tokenizer) takeName(b []byte, rel int) (string, []byte, error) {
	if len(b) == 0 || !xmlutil.IsNameStart(b[0]) {
		return "", nil, t.fail(rel, "malformed start tag")
	}
	i := 1
	for i < len(b) && xmlutil.IsNameChar(b[i]) {
		i++
	}
	return string(b[:i]), b[i:], nil
}

func (t *Tokenizer) parseAttrs(b []byte, rel int) ([]Attr, error) {
	var attrs []Attr
	i := 0
	for {
		for i < len(b) && isSpace(b[i]) {
			i++
		}
		if i >= len(b) {
			return attrs, nil
		}
		if !xmlutil.IsNameStart(b[i]) {
			return nil, t.fail(rel+i, "malformed attribute name")
		}
		ns := i
		for i < len(b) && xmlutil.IsNameChar(b[i]) {
			i++
		}
		name := string(b[ns:i])
		for i < len(b) && isSpace(b[i]) {
			i++
		}
		if i >= len(b) || b[i] != '=' {
			return nil, t.fail(rel+i, "attribute "+name+" missing value")
		}
		i++
		for i < len(b) && isSpace(b[i]) {
			i++
		}
		if i >= len(b) || (b[i] != '"' && b[i] != '\'') {
			return nil, t.fail(rel+i, "attribute "+name+" value must be quoted")
		}
		quote := b[i]
		i++
		vs := i
		for i < len(b) && b[i] != quote {
			i++
		}
		if i >= len(b) {
			return nil, t.fail(rel+vs, "attribute "+name+" value unterminated")
		}
		value, err := t.unescape(b[vs:i], rel+vs)
		if err != nil {
			return nil, err
		}
		i++
		attrs = append(attrs, Attr{Name: name, Value: string(value)})
	}
}

// unescape expands entity references. The input is returned unchanged
// (no copy) when it contains no ampersand.
func (t *Tokenizer) unescape(b []byte, rel int) ([]byte, error) {
	amp := bytes.IndexByte(b, '&')
	if amp < 0 {
		return b, nil
	}
	out := make([]byte, 0, len(b))
	out = append(out, b[:amp]...)
	for i := amp; i < len(b); {
		if b[i] != '&' {
			out = append(out, b[i])
			i++
			continue
		}
		semi := bytes.IndexByte(b[i:], ';')
		if semi < 0 {
			return nil, t.fail(rel+i, "unterminated entity reference")
		}
		ent := string(b[i+1 : i+semi])
		switch {
		case ent == "lt":
			out = append(out, '<')
		case ent == "gt":
			out = append(out, '>')
		case ent == "amp":
			out = append(out, '&')
		case ent == "quot":
			out = append(out, '"')
		case ent == "apos":
			out = append(out, '\'')
		case len(ent) > 1 && ent[0] == '#':
			r, err := parseCharRef(ent[1:])
			if err != nil {
				return nil, t.fail(rel+i, "bad character reference &"+ent+";")
			}
			out = append(out, string(rune(r))...)
		default:
			return nil, t.fail(rel+i, "unknown entity &"+ent+";")
		}
		i += semi + 1
	}
	return out, nil
}

func parseCharRef(s string) (int64, error) {
	if len(s) > 1 && (s[0] == 'x' || s[0] == 'X') {
		return strconv.ParseInt(s[1:], 16, 32)
	}
	return strconv.ParseInt(s, 10, 32)
}

// findTagEnd locates the '>' terminating a start tag, honouring quoted
// attribute values. complete is false when more input is needed.
func findTagEnd(b []byte) (idx int, complete bool) {
	var quote byte
	for i := 1; i < len(b); i++ {
		switch c := b[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i, true
		}
	}
	return 0, false
}

// hasOrMayGrowPrefix reports whether b begins with prefix, or is a
// proper prefix of it (in which case more input may complete it).
func hasOrMayGrowPrefix(b []byte, prefix string) bool {
	if len(b) >= len(prefix) {
		return string(b[:len(prefix)]) == prefix
	}
	return string(b) == prefix[:len(b)]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func validName(s string) bool {
	if s == "" || !xmlutil.IsNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !xmlutil.IsNameChar(s[i]) {
			return false
		}
	}
	return true
}
