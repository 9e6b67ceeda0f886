package engine_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/engine"
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmltok"
)

const authCommand = `<authenticate><credentials>` +
	`<username>u</username><password>p</password>` +
	`</credentials></authenticate>`

// calls counts stub domain operation invocations.
type calls struct {
	widgets   int
	composite int
}

// testRegistry builds a minimal roster around stub operations so the
// engine mechanics can be observed without the full command set.
func testRegistry(c *calls) *grammar.Registry {
	r := grammar.NewRegistry()

	authRoot := grammar.Element("authenticate")
	creds := authRoot.Append(grammar.Element("credentials"))
	creds.Append(grammar.Element("username",
		grammar.WithText(func(p params.Params, v string) { p.(*params.Authenticate).Username += v })))
	creds.Append(grammar.Element("password",
		grammar.WithText(func(p params.Params, v string) { p.(*params.Authenticate).Password += v })))
	r.Add(&grammar.Command{
		Name:    "authenticate",
		PreAuth: true,
		New:     func() params.Params { return &params.Authenticate{} },
		Root:    authRoot,
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			q := p.(*params.Authenticate)
			id, err := call.Creds.Verify(q.Username, q.Password)
			if err != nil {
				return domain.Result{Code: -1}
			}
			if id == nil {
				return domain.Result{Code: 1, StatusText: "Authentication failed"}
			}
			return domain.Result{Identity: id}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK, 1: vmperr.StatusSyntaxError},
	})

	r.Add(&grammar.Command{
		Name:    "get_version",
		PreAuth: true,
		New:     func() params.Params { return &params.GetVersion{} },
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			return domain.Result{Payload: "<version>1.0</version>"}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})

	// get_widgets has no children in its grammar
	r.Add(&grammar.Command{
		Name: "get_widgets",
		New:  func() params.Params { return &params.GetVersion{} },
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			c.widgets++
			return domain.Result{Payload: "<widget/>"}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})

	// composite runs a nested get_version and echoes its response
	r.Add(&grammar.Command{
		Name: "composite",
		New:  func() params.Params { return &params.GetVersion{} },
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			c.composite++
			out, err := call.Nested("<get_version/>")
			if err != nil {
				return domain.Result{Code: -1}
			}
			return domain.Result{Payload: out}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})

	// needy requires a field it never receives from an empty command
	r.Add(&grammar.Command{
		Name: "needy",
		New:  func() params.Params { return &params.GetTasks{} },
		Root: grammar.Element("needy",
			grammar.WithAttr("task_id", func(p params.Params, v string) { p.(*params.GetTasks).TaskID = v })),
		Required: func(p params.Params) *vmperr.Error {
			if p.(*params.GetTasks).TaskID == "" {
				return vmperr.Syntax(vmperr.WithMessage("needy requires a task_id"))
			}
			return nil
		},
		Handle: func(call *domain.Call, p params.Params) domain.Result {
			return domain.Result{}
		},
		Statuses: map[int]vmperr.Status{0: vmperr.StatusOK},
	})

	return r
}

type engineOption func(*engine.Config)

func withDisabled(names ...string) engineOption {
	return func(cfg *engine.Config) { cfg.Disabled = names }
}

func withMaxOutput(n int) engineOption {
	return func(cfg *engine.Config) { cfg.MaxOutput = n }
}

func newTestEngine(c *calls, opts ...engineOption) *engine.Engine {
	cfg := engine.Config{
		Registry: testRegistry(c),
		Call: &domain.Call{
			Store: domain.NewStore(),
			Creds: domain.StaticChecker{"u": {Password: "p", Role: "Admin"}},
		},
		Log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return engine.New(cfg)
}

// feed parses a complete document through a fresh tokenizer.
func feed(e *engine.Engine, input string) error {
	tok := xmltok.New(e)
	if err := tok.Feed([]byte(input)); err != nil {
		return err
	}
	return tok.Close()
}

func authenticate(t *testing.T, e *engine.Engine) {
	t.Helper()
	require.NoError(t, feed(e, authCommand))
	out := string(e.Out().Drain())
	require.Contains(t, out, `<authenticate_response status="200"`)
	require.True(t, e.Authenticated())
}

func TestAuthenticateSuccess(t *testing.T) {
	e := newTestEngine(&calls{})
	require.NoError(t, feed(e, authCommand))

	out := string(e.Out().Drain())
	assert.Contains(t, out, `<authenticate_response status="200"`)
	assert.True(t, e.Authenticated())
	assert.True(t, e.Idle())
}

func TestAuthenticateFailureKeepsPreAuthState(t *testing.T) {
	e := newTestEngine(&calls{})
	input := strings.Replace(authCommand, "<password>p</password>", "<password>wrong</password>", 1)
	require.NoError(t, feed(e, input))

	out := string(e.Out().Drain())
	assert.Contains(t, out, `<authenticate_response status="400" status_text="Authentication failed"`)
	assert.False(t, e.Authenticated())

	// the engine accepts a corrected login on the same connection
	require.NoError(t, feed(e, authCommand))
	assert.True(t, e.Authenticated())
}

func TestGetVersionPreAuth(t *testing.T) {
	e := newTestEngine(&calls{})
	require.NoError(t, feed(e, "<get_version/>"))

	out := string(e.Out().Drain())
	assert.Contains(t, out, `<get_version_response status="200"`)
	assert.Contains(t, out, "<version>1.0</version>")
	assert.False(t, e.Authenticated())
	assert.True(t, e.Idle())
}

func TestPreAuthGate(t *testing.T) {
	c := &calls{}
	e := newTestEngine(c)
	err := feed(e, "<get_widgets/>")
	require.Error(t, err)
	assert.True(t, vmperr.IsFatal(err))
	assert.True(t, e.Fatal())
	assert.Equal(t, 0, c.widgets)
	assert.False(t, e.Authenticated())

	// a best-effort syntax error response precedes the failure
	out := string(e.Out().Drain())
	assert.Contains(t, out, `<get_widgets_response status="400" status_text="Bogus command name"`)
}

func TestSkipIdempotence(t *testing.T) {
	run := func(input string) (string, int) {
		c := &calls{}
		e := newTestEngine(c)
		authenticate(t, e)
		require.NoError(t, feed(e, input))
		require.True(t, e.Idle())
		return string(e.Out().Drain()), c.widgets
	}

	plain, plainCalls := run("<get_widgets></get_widgets>")
	skipped, skippedCalls := run("<get_widgets><unknown_tag attr=\"x\"><deeper><deepest/></deeper></unknown_tag></get_widgets>")

	assert.Equal(t, plain, skipped)
	assert.Equal(t, 1, plainCalls)
	assert.Equal(t, 1, skippedCalls)
}

func TestUnknownCommandAuthenticatedIsFatal(t *testing.T) {
	e := newTestEngine(&calls{})
	authenticate(t, e)

	err := feed(e, "<frobnicate/>")
	require.Error(t, err)
	assert.True(t, vmperr.IsFatal(err))
	out := string(e.Out().Drain())
	assert.Contains(t, out, `<frobnicate_response status="400"`)

	// the parse state is unusable afterwards
	assert.ErrorIs(t, e.StartElement("get_widgets", nil), engine.ErrParseUnusable)
}

func TestDisabledCommandFilter(t *testing.T) {
	c := &calls{}
	e := newTestEngine(c, withDisabled("GET_WIDGETS"))
	authenticate(t, e)

	require.NoError(t, feed(e, "<get_widgets><unknown><stuff/></unknown></get_widgets>"))
	out := string(e.Out().Drain())
	assert.Contains(t, out, `<get_widgets_response status="503"`)
	assert.Equal(t, 0, c.widgets)
	assert.True(t, e.Idle())

	// the stream remains usable for enabled commands
	require.NoError(t, feed(e, "<get_version/>"))
	assert.Contains(t, string(e.Out().Drain()), `<get_version_response status="200"`)
}

func TestStateReturnAfterCommandError(t *testing.T) {
	e := newTestEngine(&calls{})
	authenticate(t, e)

	// required-field failure is a recoverable command-level error
	require.NoError(t, feed(e, "<needy/>"))
	out := string(e.Out().Drain())
	assert.Contains(t, out, `<needy_response status="400" status_text="needy requires a task_id"`)
	assert.True(t, e.Idle())
	assert.True(t, e.Authenticated())

	require.NoError(t, feed(e, `<needy task_id="x"/>`))
	assert.Contains(t, string(e.Out().Drain()), `<needy_response status="200"`)
}

func TestOutputBackpressure(t *testing.T) {
	c := &calls{}
	// the bound fits one widget response but not two
	e := newTestEngine(c, withMaxOutput(100))
	authenticate(t, e)

	err := feed(e, "<get_widgets/><get_widgets/>")
	require.ErrorIs(t, err, engine.ErrFull)

	// both commands dispatched; the engine returned to the root and
	// the second response was held back, not lost
	assert.Equal(t, 2, c.widgets)
	assert.True(t, e.Idle())
	first := string(e.Out().Drain())
	assert.Equal(t, 1, strings.Count(first, `<get_widgets_response status="200"`))

	// draining makes room; Resume recovers the held response intact
	require.NoError(t, e.Resume())
	second := string(e.Out().Drain())
	assert.Equal(t, first, second)
}

func TestRunNestedIsolation(t *testing.T) {
	c := &calls{}
	e := newTestEngine(c)
	authenticate(t, e)

	// queue some outer output, then run a command whose handler
	// performs a nested invocation
	require.NoError(t, feed(e, "<get_widgets/>"))
	before := e.Out().Len()

	require.NoError(t, feed(e, "<composite/>"))
	assert.Equal(t, 1, c.composite)
	assert.True(t, e.Idle())
	assert.True(t, e.Authenticated())

	out := string(e.Out().Drain())
	require.Greater(t, len(out), before)
	// the outer buffer gained exactly the outer response, which
	// carries the captured nested response as its payload
	outer := out[before:]
	assert.Contains(t, outer, `<composite_response status="200"`)
	assert.Contains(t, outer, `<get_version_response status="200"`)
	assert.Contains(t, outer, "<version>1.0</version>")
	// the nested response appears once: in the payload, not emitted
	// directly to the outer buffer
	assert.Equal(t, 1, strings.Count(out, "<version>1.0</version>"))
}

func TestRunNestedDirect(t *testing.T) {
	e := newTestEngine(&calls{})
	authenticate(t, e)
	outerLen := e.Out().Len()

	out, err := e.RunNested("<get_widgets/>")
	require.NoError(t, err)
	assert.Contains(t, out, `<get_widgets_response status="200"`)
	// outer state untouched
	assert.Equal(t, outerLen, e.Out().Len())
	assert.True(t, e.Authenticated())
	assert.True(t, e.Idle())

	// nested runs are forced to the authenticated state even when
	// the outer session is not authenticated
	e2 := newTestEngine(&calls{})
	out, err = e2.RunNested("<get_widgets/>")
	require.NoError(t, err)
	assert.Contains(t, out, `<get_widgets_response status="200"`)
	assert.False(t, e2.Authenticated())
}

func TestChunkingInvariance(t *testing.T) {
	script := authCommand +
		"<get_widgets><future_extension><x/></future_extension></get_widgets>" +
		"<get_version/>"

	var want string
	for size := 1; size <= len(script); size++ {
		e := newTestEngine(&calls{})
		tok := xmltok.New(e)
		for off := 0; off < len(script); off += size {
			end := off + size
			if end > len(script) {
				end = len(script)
			}
			require.NoError(t, tok.Feed([]byte(script[off:end])))
		}
		require.NoError(t, tok.Close())
		got := string(e.Out().Drain())
		if size == 1 {
			want = got
			continue
		}
		require.Equal(t, want, got, "chunk size %d", size)
	}
}
