package session

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/openvmd/vmp/commands"
	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/engine"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/xmltok"
)

// New returns a new protocol Session reading from src and writing
// responses to dst.
func New(src io.Reader, dst io.WriteCloser, config Config) *Session {
	if config.Registry == nil {
		config.Registry = commands.Default()
	}
	if config.Store == nil {
		config.Store = domain.NewStore()
	}
	call := &domain.Call{Store: config.Store, Creds: config.Creds}
	s := &Session{
		Config: &config,
		State:  &State{Status: StatusActive},
		src:    src,
		dst:    dst,
	}
	s.engine = engine.New(engine.Config{
		Registry:  config.Registry,
		Disabled:  config.Disabled,
		Call:      call,
		MaxOutput: config.MaxOutput,
		Log:       config.Log,
	})
	s.tok = xmltok.New(s.engine)
	return s
}

// Run executes the Session s, using Handler h.
func Run(s *Session, h Handler) {
	h.OnEstablish(s)
	if err := s.serve(); err != nil {
		s.State.Status = StatusError
		h.OnError(s)
	}
	s.Close()
	h.OnClose(s)
}

// Session represents one management protocol connection.
type Session struct {
	Config *Config
	State  *State

	src    io.Reader
	dst    io.WriteCloser
	engine *engine.Engine
	tok    *xmltok.Tokenizer
}

// Handler is the Session handler interface. Server applications
// implement this interface; see Run for usage.
type Handler interface {
	// OnEstablish is called once before the session starts parsing.
	OnEstablish(*Session)
	// OnError is called once if the session fails with a transport
	// or grammar error.
	OnError(*Session)
	// OnClose is called immediately after the session's transport
	// is closed.
	OnClose(*Session)
}

// Config contains Session configuration.
type Config struct {
	// Registry is the command roster; nil selects commands.Default().
	Registry *grammar.Registry
	// Disabled lists command names refused with the unavailable
	// status for this connection's lifetime.
	Disabled []string
	// Creds validates authenticate commands.
	Creds domain.CredentialChecker
	// Store is the entity store shared between connections; nil
	// creates a private store.
	Store *domain.Store
	// MaxOutput bounds the connection's output buffer.
	MaxOutput int
	// Log is the connection-scoped logger.
	Log zerolog.Logger
}

// State contains runtime Session state.
type State struct {
	// Status is the session status.
	Status Status
	// Counters contains session byte counters.
	Counters struct {
		RxBytes int
		TxBytes int
	}

	errs []error
}

// Status is a Session's present state.
type Status int

const (
	// StatusActive indicates the session is parsing commands.
	StatusActive Status = iota
	// StatusError indicates the session encountered a fatal
	// transport or grammar error.
	StatusError
	// StatusClosed indicates the session closed normally.
	StatusClosed
)

// Engine returns the session's protocol engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Parse feeds b to the tokenizer and parses every complete construct.
// When the output buffer fills, buffered responses are flushed to the
// transport and parsing resumes; input is never re-fed. The returned
// error, if any, is fatal to the session.
func (s *Session) Parse(b []byte) error {
	s.State.Counters.RxBytes += len(b)
	err := s.tok.Feed(b)
	for errors.Is(err, engine.ErrFull) {
		if ferr := s.flush(); ferr != nil {
			return ferr
		}
		// recover any response held back by the full buffer; ErrFull
		// here means one response exceeds the bound outright
		if rerr := s.engine.Resume(); rerr != nil {
			return errors.Wrap(rerr, "response exceeds output buffer")
		}
		err = s.tok.Feed(nil)
	}
	return err
}

// Drain returns and clears the engine's buffered responses. Push-mode
// embedders use this in place of the Run loop's automatic flushing.
func (s *Session) Drain() []byte { return s.engine.Out().Drain() }

// Close closes the Session's transport.
func (s *Session) Close() error {
	if s.State.Status == StatusActive {
		s.State.Status = StatusClosed
	}
	err := s.dst.Close()
	if err == io.ErrClosedPipe {
		err = nil
	}
	return err
}

// AddError adds an error to the session state.
func (s *Session) AddError(errs ...error) (added int) {
	for _, err := range errs {
		if err != nil {
			s.State.errs = append(s.State.errs, err)
			added++
		}
	}
	return added
}

// Errors returns all session errors.
func (s *Session) Errors() []error { return s.State.errs }

// Run executes the session using Handler h.
func (s *Session) Run(handler Handler) { Run(s, handler) }

// serve is the transport loop: read, parse available input, drain
// output, repeat until EOF or a fatal error.
func (s *Session) serve() error {
	buf := make([]byte, 4096)
	for {
		n, rerr := s.src.Read(buf)
		if n > 0 {
			perr := s.Parse(buf[:n])
			if ferr := s.flush(); ferr != nil {
				s.AddError(ferr)
				return ferr
			}
			if perr != nil {
				s.AddError(perr)
				return perr
			}
		}
		switch rerr {
		case nil:
		case io.EOF:
			if cerr := s.tok.Close(); cerr != nil {
				s.AddError(cerr)
				return cerr
			}
			return nil
		default:
			s.AddError(rerr)
			return rerr
		}
	}
}

// flush writes buffered responses to the transport.
func (s *Session) flush() error {
	out := s.engine.Out().Drain()
	if len(out) == 0 {
		return nil
	}
	n, err := s.dst.Write(out)
	s.State.Counters.TxBytes += n
	if err == nil && n < len(out) {
		err = io.ErrShortWrite
	}
	return errors.WithStack(err)
}
