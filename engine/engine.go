/*
Package engine implements the management protocol state machine and
command dispatcher.

An Engine is created per connection and driven through the xmltok.Sink
callbacks. Its parser state is a position in the registered command
grammar; completed commands are dispatched to domain operations and
exactly one response element per command is appended to the bounded
output Buffer. All parsing and dispatch is synchronous on the caller's
goroutine; re-entrant invocation (RunNested) is the only nesting and is
strictly call/return.
*/
package engine

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmltok"
	"github.com/openvmd/vmp/xmlutil"
)

// ErrParseUnusable is returned once a grammar-level error has occurred;
// the connection's parse state cannot be resynchronized and the caller
// must close the connection.
var ErrParseUnusable = errors.New("engine: parse state unusable")

// Config carries per-connection engine configuration.
type Config struct {
	// Registry is the command roster. Required.
	Registry *grammar.Registry
	// Disabled lists command names refused with the unavailable
	// status. Matched case-insensitively, fixed per connection.
	Disabled []string
	// Call is the domain collaborator bundle passed to handlers.
	Call *domain.Call
	// MaxOutput bounds the output buffer; 0 means DefaultMaxOutput.
	MaxOutput int
	// Log receives audit events, one per dispatched command.
	Log zerolog.Logger
}

// activeCommand tracks the one in-progress top-level command.
type activeCommand struct {
	def      *grammar.Command
	p        params.Params
	delegate grammar.Delegate
	depth    int // element depth below the command element
	started  time.Time
}

// skipState is the engine's single skip episode: a nesting counter
// plus the state to resume at once the unrecognized subtree closes.
type skipState struct {
	grammar.Skip
	resume *grammar.Node
}

// Engine is the per-connection protocol state machine. It implements
// xmltok.Sink.
type Engine struct {
	reg      *grammar.Registry
	disabled map[string]struct{}
	out      *Buffer
	call     *domain.Call
	log      zerolog.Logger

	authed  bool
	cur     *grammar.Node // nil at the root/authenticated level
	active  *activeCommand
	skip    skipState
	fatal   bool
	pending []byte // responses held back by a full output buffer
}

// New returns an Engine for one connection.
func New(cfg Config) *Engine {
	if cfg.Registry == nil {
		panic("engine: Config.Registry is required")
	}
	call := cfg.Call
	if call == nil {
		call = &domain.Call{}
	}
	e := &Engine{
		reg:      cfg.Registry,
		disabled: map[string]struct{}{},
		out:      NewBuffer(cfg.MaxOutput),
		call:     call,
		log:      cfg.Log,
	}
	for _, name := range cfg.Disabled {
		e.disabled[xmlutil.Fold(name)] = struct{}{}
	}
	call.Nested = e.RunNested
	call.Commands = cfg.Registry.Names()
	call.Log = cfg.Log
	return e
}

// Out returns the engine's output buffer.
func (e *Engine) Out() *Buffer { return e.out }

// Authenticated reports whether the session has authenticated.
func (e *Engine) Authenticated() bool { return e.authed }

// Idle reports whether the engine is at the root between commands,
// with no parameter arm live and no skip episode active.
func (e *Engine) Idle() bool {
	return e.active == nil && e.cur == nil && !e.skip.Active()
}

// Fatal reports whether a grammar-level error has made the parse
// state unusable.
func (e *Engine) Fatal() bool { return e.fatal }

// Resume retries responses held back by a full output buffer. Callers
// drain the buffer, call Resume, and continue parsing; ErrFull from
// Resume after a drain means a single response exceeds the buffer
// bound and can never be delivered.
func (e *Engine) Resume() error {
	if e.pending == nil {
		return nil
	}
	if err := e.out.Emit(e.pending); err != nil {
		return err
	}
	e.pending = nil
	return nil
}

// StartElement implements xmltok.Sink.
func (e *Engine) StartElement(name string, attrs []xmltok.Attr) error {
	if e.fatal {
		return ErrParseUnusable
	}
	folded := xmlutil.Fold(name)
	if e.skip.Active() {
		e.skip.Enter()
		return nil
	}
	if a := e.active; a != nil && a.delegate != nil {
		a.depth++
		return a.delegate.Start(folded, attrs)
	}
	if e.active == nil {
		return e.openCommand(folded, attrs)
	}
	child, ok := e.cur.Child(folded)
	if !ok {
		// forward compatibility: unknown child elements are legal
		e.beginSkip(e.cur)
		return nil
	}
	if enter := child.Enter(); enter != nil {
		enter(e.active.p)
	}
	child.BindAttrs(e.active.p, attrs)
	e.cur = child
	return nil
}

// EndElement implements xmltok.Sink.
func (e *Engine) EndElement(name string) error {
	if e.fatal {
		return ErrParseUnusable
	}
	if e.skip.Active() {
		if e.skip.Leave() {
			e.cur = e.skip.resume
			e.skip.resume = nil
		}
		return nil
	}
	a := e.active
	if a == nil {
		// the tokenizer guarantees tag balance, so an end element can
		// only arrive here through engine state corruption
		return errors.New("engine: end element outside any command")
	}
	if a.delegate != nil {
		if a.depth > 0 {
			a.depth--
			return a.delegate.End(xmlutil.Fold(name))
		}
		return e.dispatch()
	}
	if e.cur == a.def.Root {
		return e.dispatch()
	}
	e.cur = e.cur.Parent()
	return nil
}

// Text implements xmltok.Sink.
func (e *Engine) Text(data []byte) error {
	if e.fatal {
		return ErrParseUnusable
	}
	if e.skip.Active() {
		return nil
	}
	a := e.active
	if a == nil {
		return nil
	}
	if a.delegate != nil {
		return a.delegate.Text(data)
	}
	if set := e.cur.Text(); set != nil {
		set(a.p, string(data))
	}
	return nil
}

// openCommand handles a start element at the root/authenticated level.
func (e *Engine) openCommand(folded string, attrs []xmltok.Attr) error {
	def, known := e.reg.Lookup(folded)
	if !known || (!e.authed && !def.PreAuth) {
		// hard grammar error: attempt a best-effort syntax-error
		// response, then declare the parse failed
		perr := vmperr.BogusCommand()
		_ = e.emitResponse(folded, perr.Status, perr.StatusText(), "", "")
		e.fatal = true
		e.log.Warn().Str("command", folded).Bool("authenticated", e.authed).
			Msg("unrecognized command name")
		return errors.WithStack(perr)
	}
	if _, off := e.disabled[def.Name]; off {
		// short-circuit: unavailable response, subtree consumed by a
		// skip episode, parameter arm never touched. The skip begins
		// before emission so a full buffer cannot desynchronize the
		// stream position.
		e.beginSkip(nil)
		err := e.emitResponse(def.Name, vmperr.StatusUnavailable, vmperr.StatusUnavailable.Text(), "", "")
		e.audit(def.Name, vmperr.StatusUnavailable, time.Now())
		return err
	}
	p := def.New()
	a := &activeCommand{def: def, p: p, started: time.Now()}
	if def.NewDelegate != nil {
		a.delegate = def.NewDelegate(p)
	}
	def.Root.BindAttrs(p, attrs)
	e.active = a
	e.cur = def.Root
	return nil
}

// beginSkip opens the skip episode, remembering the state to resume.
func (e *Engine) beginSkip(resume *grammar.Node) {
	e.skip.Begin() // panics if an episode is already active
	e.skip.resume = resume
}

// dispatch runs when a top-level command's closing tag is seen:
// required-field validation, exactly one domain operation, numeric
// code mapping, exactly one response element.
func (e *Engine) dispatch() error {
	a := e.active
	// the arm is consumed and the engine returns to the authenticated
	// root whatever the outcome; only output can be lost from here on
	e.active = nil
	e.cur = nil

	def := a.def
	if def.Required != nil {
		if perr := def.Required(a.p); perr != nil {
			err := e.emitResponse(def.Name, perr.Status, perr.StatusText(), "", "")
			e.audit(def.Name, perr.Status, a.started)
			return err
		}
	}
	res := def.Handle(e.call, a.p)
	if res.Identity != nil {
		e.authed = true
		e.call.Identity = res.Identity
	}
	status := def.Status(res.Code)
	text := res.StatusText
	if text == "" {
		text = status.Text()
	}
	err := e.emitResponse(def.Name, status, text, res.ID, res.Payload)
	e.audit(def.Name, status, a.started)
	return err
}

func (e *Engine) audit(command string, status vmperr.Status, started time.Time) {
	e.log.Info().
		Str("command", command).
		Str("status", status.Code()).
		Dur("elapsed", time.Since(started)).
		Msg("command dispatched")
}

// emitResponse appends the command's single response element to the
// output buffer.
func (e *Engine) emitResponse(name string, status vmperr.Status, text, id, payload string) error {
	buf := make([]byte, 0, 64+len(payload))
	buf = append(buf, '<')
	buf = append(buf, name...)
	buf = append(buf, `_response status="`...)
	buf = append(buf, status.Code()...)
	buf = append(buf, `" status_text="`...)
	buf = append(buf, xmlutil.EscapeAttr(text)...)
	buf = append(buf, '"')
	if id != "" {
		buf = append(buf, ` id="`...)
		buf = append(buf, xmlutil.EscapeAttr(id)...)
		buf = append(buf, '"')
	}
	if payload == "" {
		buf = append(buf, "/>"...)
	} else {
		buf = append(buf, '>')
		buf = append(buf, payload...)
		buf = append(buf, "</"...)
		buf = append(buf, name...)
		buf = append(buf, "_response>"...)
	}
	// held-back responses keep stream order: anything emitted while a
	// response is pending queues behind it
	if e.pending != nil {
		e.pending = append(e.pending, buf...)
		return ErrFull
	}
	if err := e.out.Emit(buf); err != nil {
		e.pending = buf
		return err
	}
	return nil
}

// RunNested synthesizes and runs a complete sub-command through the
// engine, returning its response document as a string. The outer
// parser state, parameter arm, skip episode and output buffer are
// saved and restored verbatim around the nested run, which executes
// with a private buffer and the state forced to authenticated.
func (e *Engine) RunNested(command string) (string, error) {
	saved := struct {
		authed   bool
		identity *domain.Identity
		cur      *grammar.Node
		active   *activeCommand
		skip     skipState
		fatal    bool
		out      *Buffer
		pending  []byte
	}{e.authed, e.call.Identity, e.cur, e.active, e.skip, e.fatal, e.out, e.pending}

	e.out = NewBuffer(saved.out.Max())
	e.cur = nil
	e.active = nil
	e.skip = skipState{}
	e.fatal = false
	e.authed = true
	e.pending = nil

	tok := xmltok.New(e)
	err := tok.Feed([]byte(command))
	if err == nil {
		err = tok.Close()
	}
	response := string(e.out.Drain())

	e.authed = saved.authed
	e.call.Identity = saved.identity
	e.cur = saved.cur
	e.active = saved.active
	e.skip = saved.skip
	e.fatal = saved.fatal
	e.out = saved.out
	e.pending = saved.pending

	if err != nil {
		return "", errors.Wrap(err, "nested command")
	}
	return response, nil
}
