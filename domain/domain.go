/*
Package domain defines the boundary between the protocol engine and the
daemon's domain operations.

A domain operation receives the fields accumulated for one command and
returns a Result carrying a command-specific numeric code plus an
optional payload. Numeric codes are interpreted per command by the
dispatcher's status mapping; only CodePermissionDenied is reserved
across all commands.
*/
package domain

import "github.com/rs/zerolog"

// CodePermissionDenied is the reserved result code produced by access
// control. The dispatcher maps it to the permission-denied status for
// every command.
const CodePermissionDenied = 99

// Result is the outcome of one domain operation.
type Result struct {
	// Code is the command-specific numeric result code.
	Code int
	// ID is the identifier of a created resource, if any.
	ID string
	// Payload is inner XML appended to the response element.
	Payload string
	// StatusText overrides the mapped status's default status_text.
	StatusText string
	// Identity is set by the authenticate operation on success; the
	// engine transitions the session to the authenticated state.
	Identity *Identity
}

// Identity describes an authenticated protocol user.
type Identity struct {
	Username string
	Role     string
	Timezone string
}

// CredentialChecker validates protocol login credentials.
// A nil Identity with a nil error means the credentials were refused.
type CredentialChecker interface {
	Verify(username, password string) (*Identity, error)
}

// CheckerFunc adapts a function to the CredentialChecker interface.
type CheckerFunc func(username, password string) (*Identity, error)

func (f CheckerFunc) Verify(username, password string) (*Identity, error) {
	return f(username, password)
}

// StaticChecker verifies credentials against a fixed user table,
// typically loaded from the daemon configuration.
type StaticChecker map[string]StaticUser

// StaticUser is one entry of a StaticChecker.
type StaticUser struct {
	Password string
	Role     string
	Timezone string
}

func (c StaticChecker) Verify(username, password string) (*Identity, error) {
	u, ok := c[username]
	if !ok || u.Password != password {
		return nil, nil
	}
	id := &Identity{Username: username, Role: u.Role, Timezone: u.Timezone}
	if id.Role == "" {
		id.Role = "User"
	}
	if id.Timezone == "" {
		id.Timezone = "UTC"
	}
	return id, nil
}

// Call bundles the collaborators available to a domain operation for
// the duration of one command dispatch.
type Call struct {
	// Store is the entity store behind the domain operations.
	Store *Store
	// Creds validates authenticate commands.
	Creds CredentialChecker
	// Identity is the authenticated user, nil before authentication.
	Identity *Identity
	// Commands is the roster of registered command names.
	Commands []string
	// Nested runs a complete sub-command through the engine and
	// returns its response document. See the engine package.
	Nested func(command string) (string, error)
	// Log is the connection-scoped logger.
	Log zerolog.Logger
}
