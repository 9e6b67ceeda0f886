/*
Package commands declares the management protocol's command vocabulary
as grammar descriptors: element trees, parameter bindings, required
field checks, domain handlers and per-command status mappings.

The engine is generic; everything specific to a command lives here.
*/
package commands

import (
	"github.com/openvmd/vmp/grammar"
	"github.com/openvmd/vmp/params"
)

// Version is the protocol version reported by get_version.
const Version = "1.0"

// Default returns the full command registry.
func Default() *grammar.Registry {
	r := grammar.NewRegistry()
	addAuth(r)
	addTasks(r)
	addTargets(r)
	addCredentials(r)
	addPortLists(r)
	addReports(r)
	addWizard(r)
	return r
}

// appendText returns a Setter appending character data to a string
// field of the arm type T. Appending matters: the tokenizer may
// deliver one run of text in several pieces.
func appendText[T params.Params](field func(T) *string) grammar.Setter {
	return func(p params.Params, v string) { *field(p.(T)) += v }
}

// setAttr returns a Setter overwriting a string field of the arm type
// T, used for attribute bindings.
func setAttr[T params.Params](field func(T) *string) grammar.Setter {
	return func(p params.Params, v string) { *field(p.(T)) = v }
}
