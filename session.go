package chirp

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
)

// sessionState tracks where a session is in its connection lifecycle.
type sessionState int

const (
	stateClosed sessionState = iota
	stateConnecting
	stateAuthenticating
	stateReady
)

// openFile records what the client knows about a descriptor it opened. The
// authoritative state lives on the server; this is local bookkeeping only.
type openFile struct {
	path  string
	flags string
	mode  int64
}

// session is one live connection to a Chirp server. A session is created for
// a single public operation and torn down when it returns. Once open, a
// session is either fully authenticated or unusable; there is no partially
// authenticated state. Descriptors opened during the session do not outlive
// it.
//
// A session is not safe for concurrent use. The protocol is strictly
// half-duplex: a command must never be issued before the previous response
// has been consumed in full.
type session struct {
	log     log.Logger
	conn    net.Conn
	timeout time.Duration
	state   sessionState
	closed  atomic.Bool
	fds     map[int]openFile
}

// dialSession opens a timed connection to the server and authenticates with
// exactly one method. On any failure the connection is torn down before
// returning.
func dialSession(cfg *Config, method AuthMethod, l log.Logger) (*session, error) {
	s := &session{
		log:     l,
		timeout: cfg.Timeout,
		state:   stateConnecting,
		fds:     make(map[int]openFile),
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.Timeout)
	if err != nil {
		s.state = stateClosed
		return nil, transportf("dial "+addr, err)
	}
	s.conn = conn

	s.state = stateAuthenticating
	if err := s.authenticate(method, cfg.Cookie); err != nil {
		s.Close()
		return nil, err
	}
	s.state = stateReady
	level.Debug(l).Log("msg", "session ready", "addr", addr, "auth", method)
	return s, nil
}

// authenticate runs a single authentication exchange. Only the cookie
// method is implemented: it sends `cookie <secret>` and requires the
// response to be exactly "0". Any other response, or any fault during the
// exchange, means the client is not authenticated. The remaining protocol
// methods are recognized but unsupported, which is a hard failure rather
// than something to negotiate past.
func (s *session) authenticate(method AuthMethod, cookie string) error {
	if _, known := knownAuthMethods[method]; !known {
		return &ArgError{Arg: "auth method", Reason: fmt.Sprintf("unknown method %q", method)}
	}
	if method != AuthCookie {
		return &UnsupportedAuthError{Method: method}
	}

	resp, err := s.simpleCommand(buildCommand("cookie", cookie))
	if err != nil {
		level.Debug(s.log).Log("msg", "cookie handshake failed", "err", err)
		return ErrorNotAuthenticated
	}
	if resp != "0" {
		level.Debug(s.log).Log("msg", "cookie handshake rejected", "resp", resp)
		return ErrorNotAuthenticated
	}
	return nil
}

// Close tears the session down and discards its descriptor table. It is
// safe to call on every exit path, including after a mid-exchange fault,
// and more than once.
func (s *session) Close() error {
	if !s.closed.CAS(false, true) {
		return nil
	}
	s.state = stateClosed
	s.fds = make(map[int]openFile)
	err := s.conn.Close()
	level.Debug(s.log).Log("msg", "session closed", "err", err)
	return err
}

// extendDeadline pushes the socket deadline forward before an I/O step.
// Each blocking read or write gets the full configured timeout.
func (s *session) extendDeadline() {
	if s.timeout <= 0 {
		return
	}
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
}

// UnsupportedAuthError reports an authentication method that the protocol
// defines but this client does not implement.
type UnsupportedAuthError struct {
	Method AuthMethod
}

// Error implements error.
func (e *UnsupportedAuthError) Error() string {
	return fmt.Sprintf("chirp: auth method %q is not implemented by this client", e.Method)
}

// Descriptor primitives. These are deliberately not part of the public
// surface: whole-file transfer and the metadata verbs cover the supported
// use cases, and a descriptor is only valid for the life of one session
// anyway. The block-transfer helpers and tests use them.

// validOpenFlags are the open modes understood by the server.
const validOpenFlags = "rwatcx"

func checkOpenFlags(flags string) error {
	if flags == "" {
		return &ArgError{Arg: "flags", Reason: "must be one or more of '" + validOpenFlags + "'"}
	}
	for i := 0; i < len(flags); i++ {
		if strings.IndexByte(validOpenFlags, flags[i]) < 0 {
			return &ArgError{Arg: "flags", Reason: "must be one or more of '" + validOpenFlags + "'"}
		}
	}
	return nil
}

// open asks the server for a descriptor and records it in the session's
// table. A zero mode falls back to DefaultMode.
func (s *session) open(path, flags string, mode int64) (int, error) {
	if err := checkOpenFlags(flags); err != nil {
		return 0, err
	}
	if mode == 0 {
		mode = DefaultMode
	}
	line, err := s.simpleCommand(buildCommand("open", Quote(path), flags, formatInt(mode)))
	if err != nil {
		return 0, err
	}
	fd, err := parseCount(line)
	if err != nil {
		return 0, err
	}
	s.fds[int(fd)] = openFile{path: path, flags: flags, mode: mode}
	return int(fd), nil
}

func (s *session) closeFD(fd int) error {
	if _, ok := s.fds[fd]; !ok {
		return ErrorBadFD
	}
	_, err := s.simpleCommand(buildCommand("close", strconv.Itoa(fd)))
	delete(s.fds, fd)
	return err
}

func (s *session) readFD(fd int, length int64) ([]byte, error) {
	return s.readVerb(buildCommand("read", strconv.Itoa(fd), formatInt(length)))
}

func (s *session) preadFD(fd int, length, offset int64) ([]byte, error) {
	return s.readVerb(buildCommand("pread", strconv.Itoa(fd), formatInt(length), formatInt(offset)))
}

// sreadFD performs a strided read: strideLength bytes every strideSkip
// bytes, starting at offset.
func (s *session) sreadFD(fd int, length, offset, strideLength, strideSkip int64) ([]byte, error) {
	return s.readVerb(buildCommand("sread", strconv.Itoa(fd), formatInt(length),
		formatInt(offset), formatInt(strideLength), formatInt(strideSkip)))
}

func (s *session) readVerb(cmd string) ([]byte, error) {
	line, err := s.simpleCommand(cmd)
	if err != nil {
		return nil, err
	}
	n, err := parseCount(line)
	if err != nil {
		return nil, err
	}
	return s.readBlock(n)
}

func (s *session) writeFD(fd int, data []byte) (int64, error) {
	return s.writeVerb(buildCommand("write", strconv.Itoa(fd), formatInt(int64(len(data)))), data)
}

func (s *session) pwriteFD(fd int, data []byte, offset int64) (int64, error) {
	return s.writeVerb(buildCommand("pwrite", strconv.Itoa(fd),
		formatInt(int64(len(data))), formatInt(offset)), data)
}

func (s *session) swriteFD(fd int, data []byte, offset, strideLength, strideSkip int64) (int64, error) {
	return s.writeVerb(buildCommand("swrite", strconv.Itoa(fd), formatInt(int64(len(data))),
		formatInt(offset), formatInt(strideLength), formatInt(strideSkip)), data)
}

// writeVerb announces a write and then sends as many bytes as the server
// accepted, which may be fewer than offered.
func (s *session) writeVerb(cmd string, data []byte) (int64, error) {
	line, err := s.simpleCommand(cmd)
	if err != nil {
		return 0, err
	}
	n, err := parseCount(line)
	if err != nil {
		return 0, err
	}
	if n > int64(len(data)) {
		n = int64(len(data))
	}
	return s.writeBlock(bytes.NewReader(data[:n]), n)
}

func (s *session) fsyncFD(fd int) error {
	_, err := s.simpleCommand(buildCommand("fsync", strconv.Itoa(fd)))
	return err
}

func (s *session) lseekFD(fd int, offset int64, whence int) (int64, error) {
	line, err := s.simpleCommand(buildCommand("lseek", strconv.Itoa(fd),
		formatInt(offset), strconv.Itoa(whence)))
	if err != nil {
		return 0, err
	}
	return parseCount(line)
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }
