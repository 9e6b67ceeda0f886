package grammar

import "github.com/openvmd/vmp/xmltok"

// Delegate is the sub-grammar contract. A command's delegate is
// selected when the command's opening tag is seen and receives every
// tokenizer event until the matching closing tag, at which point the
// engine dispatches the command as usual. Element names are delivered
// folded.
//
// Delegates keep their own private state and populate the command's
// parameter arm directly; a returned error is treated as fatal to the
// parse, so recoverable sub-grammar problems should instead be left
// for the command's Required validation to report.
type Delegate interface {
	Start(name string, attrs []xmltok.Attr) error
	Text(data []byte) error
	End(name string) error
}

// Skip tracks one skip episode over an unrecognized subtree: a bare
// nesting counter, sufficient because elements inside a skipped
// subtree are by construction also unrecognized. Both the engine and
// delegates use it to ignore unknown future extensions.
type Skip struct {
	depth int
}

// Active reports whether a skip episode is in progress.
func (s *Skip) Active() bool { return s.depth > 0 }

// Begin opens an episode at the unrecognized element. It panics if an
// episode is already active: a recognized element can never occur
// inside a skipped subtree, so nested Begin indicates engine
// corruption.
func (s *Skip) Begin() {
	if s.depth != 0 {
		panic("grammar: skip episode already active")
	}
	s.depth = 1
}

// Enter records a start element inside the skipped subtree.
func (s *Skip) Enter() { s.depth++ }

// Leave records an end element, reporting true when the episode has
// collapsed and normal processing resumes.
func (s *Skip) Leave() bool {
	s.depth--
	return s.depth == 0
}
