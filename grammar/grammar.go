/*
Package grammar provides the data-driven command grammar consumed by
the protocol engine.

A command's syntax is declared as a tree of Nodes keyed by folded
element name, with attribute and text bindings that populate the
command's parameter arm as the tokenizer delivers events. The engine's
current parser state is simply its position in this tree; adding a
command is a data change here, never an engine change.

Commands whose syntax is too deep or irregular for a flat node tree
declare a Delegate instead, which receives every tokenizer event
between the command's opening and closing tags.
*/
package grammar

import (
	"github.com/openvmd/vmp/params"
	"github.com/openvmd/vmp/xmltok"
	"github.com/openvmd/vmp/xmlutil"
)

// Setter binds one attribute or text value into a parameter arm.
// Text setters must append: character data may be delivered in pieces.
type Setter func(p params.Params, v string)

// AttrBinding maps an attribute name (folded) to a Setter.
type AttrBinding struct {
	Name string
	Set  Setter
}

// Node is one position in a command's grammar tree.
type Node struct {
	name     string
	parent   *Node
	children map[string]*Node
	attrs    []AttrBinding
	text     Setter
	enter    func(p params.Params)
}

// NodeOption configures a Node at construction.
type NodeOption func(*Node)

// WithText binds character data inside the element to set.
func WithText(set Setter) NodeOption {
	return func(n *Node) { n.text = set }
}

// WithEnter runs fn each time the element is entered, before attribute
// binding. Repeated-record grammars use it to append a fresh record.
func WithEnter(fn func(p params.Params)) NodeOption {
	return func(n *Node) { n.enter = fn }
}

// WithAttr binds the named attribute (matched case-insensitively) to set.
func WithAttr(name string, set Setter) NodeOption {
	return func(n *Node) {
		n.attrs = append(n.attrs, AttrBinding{Name: xmlutil.Fold(name), Set: set})
	}
}

// Element returns a new grammar Node for the named element.
func Element(name string, opts ...NodeOption) *Node {
	n := &Node{name: xmlutil.Fold(name), children: map[string]*Node{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Append adds child to n and returns the child, allowing chained
// construction of nested grammars.
func (n *Node) Append(child *Node) *Node {
	child.parent = n
	n.children[child.name] = child
	return child
}

// Name returns the node's folded element name.
func (n *Node) Name() string { return n.name }

// Parent returns the node's parent, nil for a command root.
func (n *Node) Parent() *Node { return n.parent }

// Child looks up a child node by folded element name.
func (n *Node) Child(folded string) (*Node, bool) {
	c, ok := n.children[folded]
	return c, ok
}

// Text returns the node's text Setter, nil if none.
func (n *Node) Text() Setter { return n.text }

// Enter returns the node's entry hook, nil if none.
func (n *Node) Enter() func(p params.Params) { return n.enter }

// BindAttrs applies the node's attribute bindings against the start
// element's attributes. Unbound attributes are ignored: unknown
// attributes, like unknown elements, are legal future extensions.
func (n *Node) BindAttrs(p params.Params, attrs []xmltok.Attr) {
	if len(n.attrs) == 0 || len(attrs) == 0 {
		return
	}
	for _, a := range attrs {
		folded := xmlutil.Fold(a.Name)
		for _, b := range n.attrs {
			if b.Name == folded {
				b.Set(p, a.Value)
			}
		}
	}
}
