package grammar

import (
	"sort"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/vmperr"
	"github.com/openvmd/vmp/xmlutil"
)

// Handler executes the domain operation for a completed command.
type Handler func(call *domain.Call, p params.Params) domain.Result

// Command describes one top-level protocol command.
type Command struct {
	// Name is the command element name (stored folded).
	Name string
	// PreAuth marks commands valid before authentication.
	PreAuth bool
	// New returns a fresh, empty parameter arm.
	New func() params.Params
	// Root is the command's grammar tree. Attribute bindings on Root
	// apply to the command element itself.
	Root *Node
	// NewDelegate, if non-nil, returns the sub-grammar delegate that
	// receives all events inside the command. Root children are then
	// unused.
	NewDelegate func(p params.Params) Delegate
	// Required validates the completed arm before dispatch. A non-nil
	// return is emitted as the command's response instead of invoking
	// Handle.
	Required func(p params.Params) *vmperr.Error
	// Handle invokes the domain operation.
	Handle Handler
	// Statuses maps the operation's numeric result codes onto the
	// protocol status taxonomy. Codes differ in meaning per command.
	Statuses map[int]vmperr.Status
}

// Status maps a domain result code for this command. The reserved
// permission-denied code applies to every command; unmapped codes are
// internal errors.
func (c *Command) Status(code int) vmperr.Status {
	if s, ok := c.Statuses[code]; ok {
		return s
	}
	if code == domain.CodePermissionDenied {
		return vmperr.StatusPermissionDenied
	}
	return vmperr.StatusInternalError
}

// Registry is the set of commands known to an engine.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: map[string]*Command{}}
}

// Add registers a command, folding its name. It panics on duplicates,
// which are always a programming error in the command roster.
func (r *Registry) Add(c *Command) *Registry {
	name := xmlutil.Fold(c.Name)
	if _, dup := r.commands[name]; dup {
		panic("grammar: duplicate command " + name)
	}
	c.Name = name
	if c.Root == nil {
		c.Root = Element(name)
	}
	r.commands[name] = c
	return r
}

// Lookup finds a command by element name, case-insensitively.
func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.commands[xmlutil.Fold(name)]
	return c, ok
}

// Names returns the sorted roster of registered command names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
