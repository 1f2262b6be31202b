// Package chirp implements a client for the Chirp remote I/O protocol as
// spoken by the HTCondor starter's I/O proxy. A job talks to a nearby proxy
// over TCP to read and update its job ad, write to the job event log, and
// perform remote file operations without a local mount.
//
// Chirp is a line-oriented request/response protocol. Every command is a
// single newline-terminated ASCII line; the response is either a bare
// integer (a byte count on success, a negative error code on failure) or
// literal text. Some commands follow the response line with a raw byte
// payload of exactly the announced length, and the stat family responds
// with whitespace-separated integer fields spread over one or more lines.
//
// Every public operation on Client opens its own connection, authenticates,
// performs one exchange and disconnects. Connections are never reused across
// calls, so concurrent calls from different goroutines do not share
// transport state.
package chirp

// ProtocolVersion is the Chirp protocol revision this client implements.
const ProtocolVersion = 2

// LineMax is the maximum length of a single protocol line, in bytes. It is
// also the chunk size used for bulk payload transfer.
const LineMax = 1024

// AuthMethod names a Chirp authentication method. Only AuthCookie is
// implemented by this client. The remaining methods are recognized names
// from the protocol; selecting one fails client construction.
type AuthMethod string

// Authentication methods defined by the protocol.
const (
	AuthCookie   AuthMethod = "cookie"
	AuthHostname AuthMethod = "hostname"
	AuthUnix     AuthMethod = "unix"
	AuthKerberos AuthMethod = "kerberos"
	AuthGlobus   AuthMethod = "globus"
)

var knownAuthMethods = map[AuthMethod]struct{}{
	AuthCookie:   {},
	AuthHostname: {},
	AuthUnix:     {},
	AuthKerberos: {},
	AuthGlobus:   {},
}

// DefaultMode is the permission mode sent for mkdir, putfile and open when
// the caller does not specify one: rwx for user, group and other.
const DefaultMode = 0o777
