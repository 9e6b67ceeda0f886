/*
Package vmp is the protocol engine of a vulnerability-management daemon.

The engine decodes the XML-based management protocol ("VMP") arriving
incrementally over a byte stream, tracks its position in the command
grammar, accumulates per-command parameters, and dispatches completed
commands to domain operations, emitting one structured XML response
per command.

The xmltok package provides the resumable push tokenizer, grammar the
data-driven command descriptors, engine the parser state machine and
command dispatcher, and session the per-connection transport loop.
Domain operations (task, target, credential, port list and report
management) are reached through the uniform contract in the domain
package; the engine only maps their numeric result codes onto the
protocol status taxonomy defined in vmperr.

See the cmd/vmpd directory for the daemon front end.
*/
package vmp
