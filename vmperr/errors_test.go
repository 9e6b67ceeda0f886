package vmperr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	for _, tc := range []struct {
		status Status
		code   string
		text   string
	}{
		{StatusOK, "200", "OK"},
		{StatusOKCreated, "201", "OK, resource created"},
		{StatusOKRequested, "202", "OK, request submitted"},
		{StatusSyntaxError, "400", "Syntax error"},
		{StatusPermissionDenied, "403", "Permission denied"},
		{StatusMissingResource, "404", "Failed to find resource"},
		{StatusInternalError, "500", "Internal error"},
		{StatusUnavailable, "503", "Service unavailable"},
	} {
		assert.Equal(t, tc.code, tc.status.Code())
		assert.Equal(t, tc.text, tc.status.Text())

		var rt Status
		assert.NoError(t, rt.UnmarshalText([]byte(tc.code)))
		assert.Equal(t, tc.status, rt)
	}
}

func TestErrorConstructors(t *testing.T) {
	ck := assert.New(t)

	e := Syntax(WithMessage("missing name"))
	ck.Equal(StatusSyntaxError, e.Status)
	ck.Equal("missing name", e.StatusText())
	ck.False(e.Fatal)

	e = AuthenticationFailed()
	ck.Equal("Authentication failed", e.StatusText())

	e = BogusCommand()
	ck.True(e.Fatal)
	ck.True(IsFatal(e))
	ck.True(IsFatal(errors.Wrap(e, "dispatch")))

	ck.False(IsFatal(MissingResource()))
	ck.Equal("Failed to find resource", MissingResource().StatusText())
}
