// Package protocol implements the parsing and serialising of the Redis
// protocol (RESP2) that respd uses to talk to its clients.
//
// - `Value` - One protocol value: simple string, error, integer, bulk string,
//             array or null.
// - `Decoder` - Turns a stream of bytes into Values, one at a time.
// - `Request` - A client command built from a decoded Value.
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - the first byte of a value says what kind of value it is
// - bulk strings are length prefixed and binary safe, their payload is never
//   scanned for `\r\n`
//
//   ```
//     +OK\r\n
//     -Invalid command 'FOO'\r\n
//     :42\r\n
//     $5\r\nhello\r\n
//     *2\r\n$3\r\nGET\r\n$3\r\nkey\r\n
//     $-1\r\n
//   ```
//
// A negative length for a bulk string or an array is a null, not an error.
//
// === Client requests
//
// Clients send either an array of bulk strings
//
//   ```
//     > *3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n
//     < +OK\r\n
//   ```
//
// or an inline command, a plain line split on whitespace. This is what you get
// when typing into telnet or netcat.
//
//   ```
//     > GET key\r\n
//     < $5\r\nvalue\r\n
//   ```
//
// Command names are case insensitive. The commands understood are PING [msg],
// GET key, SET key value, APPEND key value, KEYS pattern, EXISTS key and
// COMMAND.
//
// === Partial reads
//
// TCP hands us bytes in whatever chunks it likes. A Decoder keeps its progress
// in a DecoderState between calls, so a value split across many reads is
// assembled without scanning any byte twice. Decode never blocks and never
// drops buffered bytes, the caller appends to its buffer and calls again.
//
// === Error responses
//
//   ```
//     > *1\r\n$3\r\nGET\r\n
//     < -Not enough arguments\r\n
//   ```
//
// Request errors leave the connection usable. A protocol error, i.e. bytes that
// are not valid RESP, is replied to and then the connection is closed.
package protocol
