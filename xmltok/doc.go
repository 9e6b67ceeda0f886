/*
Package xmltok implements a resumable push tokenizer for the management
protocol's XML input stream.

Unlike encoding/xml, the tokenizer is fed byte chunks of arbitrary size
and emits element, text and end-of-element events to a Sink as soon as
each construct is complete, retaining any trailing partial construct
until the next Feed call. This gives the protocol engine its "feed more
bytes, then parse what is available" contract: splitting the input into
any sequence of chunks produces the same event sequence.

The tokenizer owns no protocol semantics. It validates well-formedness
only (tag balance, attribute syntax, entity references) and reports
violations as *SyntaxError values carrying the absolute input offset.
Malformed input is fatal: the tokenizer must be discarded afterwards.
*/
package xmltok
