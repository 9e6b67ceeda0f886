package session_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/session"
)

const loginCommand = `<authenticate><credentials>` +
	`<username>admin</username><password>secret</password>` +
	`</credentials></authenticate>`

func testConfig() session.Config {
	return session.Config{
		Creds: domain.StaticChecker{"admin": {Password: "secret"}},
		Log:   zerolog.Nop(),
	}
}

// closeBuffer is an in-memory WriteCloser transport.
type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closeBuffer) Close() error {
	b.closed = true
	return nil
}

// recordingHandler counts session lifecycle callbacks.
type recordingHandler struct {
	establishes int
	errors      int
	closes      int
}

func (h *recordingHandler) OnEstablish(*session.Session) { h.establishes++ }
func (h *recordingHandler) OnError(*session.Session)     { h.errors++ }
func (h *recordingHandler) OnClose(*session.Session)     { h.closes++ }

func TestSessionRun(t *testing.T) {
	input := loginCommand + "<get_version/>"
	out := &closeBuffer{}
	s := session.New(strings.NewReader(input), out, testConfig())
	h := &recordingHandler{}
	s.Run(h)

	assert.Equal(t, 1, h.establishes)
	assert.Equal(t, 0, h.errors)
	assert.Equal(t, 1, h.closes)
	assert.True(t, out.closed)
	assert.Equal(t, session.StatusClosed, s.State.Status)
	assert.Empty(t, s.Errors())

	assert.Contains(t, out.String(), `<authenticate_response status="200"`)
	assert.Contains(t, out.String(), `<get_version_response status="200"`)
	assert.Equal(t, len(input), s.State.Counters.RxBytes)
	assert.Equal(t, out.Len(), s.State.Counters.TxBytes)
}

func TestSessionFatalCommand(t *testing.T) {
	out := &closeBuffer{}
	s := session.New(strings.NewReader(loginCommand+"<frobnicate/><get_version/>"), out, testConfig())
	h := &recordingHandler{}
	s.Run(h)

	assert.Equal(t, 1, h.errors)
	assert.Equal(t, 1, h.closes)
	assert.Equal(t, session.StatusError, s.State.Status)
	assert.NotEmpty(t, s.Errors())

	// the best-effort error response is still delivered, nothing after
	// the bogus command is processed
	assert.Contains(t, out.String(), `<frobnicate_response status="400"`)
	assert.NotContains(t, out.String(), "get_version_response")
}

func TestSessionMalformedInput(t *testing.T) {
	out := &closeBuffer{}
	s := session.New(strings.NewReader("<get_version></oops>"), out, testConfig())
	h := &recordingHandler{}
	s.Run(h)

	assert.Equal(t, 1, h.errors)
	assert.Equal(t, session.StatusError, s.State.Status)
}

func TestSessionTruncatedInput(t *testing.T) {
	out := &closeBuffer{}
	s := session.New(strings.NewReader("<get_version>"), out, testConfig())
	h := &recordingHandler{}
	s.Run(h)

	// EOF with an element still open fails the session
	assert.Equal(t, 1, h.errors)
	assert.Equal(t, session.StatusError, s.State.Status)
}

func TestSessionDisabledCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Disabled = []string{"help"}
	out := &closeBuffer{}
	s := session.New(strings.NewReader(loginCommand+"<help/><get_version/>"), out, cfg)
	s.Run(&recordingHandler{})

	assert.Equal(t, session.StatusClosed, s.State.Status)
	assert.Contains(t, out.String(), `<help_response status="503"`)
	assert.Contains(t, out.String(), `<get_version_response status="200"`)
}

func TestSessionChunkingInvariance(t *testing.T) {
	// deterministic script: no created-resource ids in the output
	script := loginCommand +
		`<help format="text"/>` +
		"<get_version/>"

	run := func(oneByte bool) string {
		var src io.Reader = strings.NewReader(script)
		if oneByte {
			src = iotest.OneByteReader(src)
		}
		out := &closeBuffer{}
		s := session.New(src, out, testConfig())
		h := &recordingHandler{}
		s.Run(h)
		require.Equal(t, 0, h.errors)
		return out.String()
	}

	assert.Equal(t, run(false), run(true))
}

func TestSessionPushModeFlushOnFullBuffer(t *testing.T) {
	cfg := testConfig()
	// fits a single get_version response
	cfg.MaxOutput = 100
	out := &closeBuffer{}
	s := session.New(strings.NewReader(""), out, cfg)

	require.NoError(t, s.Parse([]byte("<get_version/><get_version/>")))

	// the first response was flushed to the transport to make room,
	// the second is waiting in the buffer
	flushed := out.String()
	buffered := string(s.Drain())
	assert.Contains(t, flushed, `<get_version_response status="200"`)
	assert.Contains(t, buffered, `<get_version_response status="200"`)
	assert.Equal(t, flushed, buffered)
}
