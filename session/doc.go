/*
Package session binds a protocol engine to a transport for the
lifetime of one connection.

A Session owns the tokenizer and the engine and drives them from the
transport's byte stream: read a chunk, parse what is available, drain
the engine's output buffer to the peer, repeat. The transport owns no
parsing knowledge; the engine owns no I/O. Embedders needing push-mode
operation (tests, in-process transports) call Parse and Drain
directly instead of Run.
*/
package session
