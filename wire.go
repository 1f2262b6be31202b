package chirp

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// buildCommand assembles a verb and its already-quoted arguments into one
// terminated command line. Callers quote free-text arguments with Quote;
// numeric arguments are formatted as plain decimal.
func buildCommand(verb string, args ...string) string {
	if len(args) == 0 {
		return verb + "\n"
	}
	return verb + " " + strings.Join(args, " ") + "\n"
}

// send writes one complete command line to the server. A line without its
// trailing terminator never goes on the wire; that would desynchronize the
// exchange.
func (s *session) send(cmd string) error {
	if len(cmd) == 0 || cmd[len(cmd)-1] != '\n' {
		return ErrorInvalidRequest
	}
	s.extendDeadline()
	if _, err := io.WriteString(s.conn, cmd); err != nil {
		return transportf("send", err)
	}
	return nil
}

// simpleCommand sends cmd and returns the classified response line.
func (s *session) simpleCommand(cmd string) (string, error) {
	if err := s.send(cmd); err != nil {
		return "", err
	}
	return s.simpleResponse()
}

// simpleResponse reads and classifies one response line. A line that parses
// as a negative integer is a server error and converts to its Error here;
// anything else (a byte count, a success code, literal text) is returned
// verbatim for the caller to interpret.
func (s *session) simpleResponse() (string, error) {
	line, err := s.readLine()
	if err != nil {
		return "", err
	}
	if code, perr := strconv.ParseInt(line, 10, 64); perr == nil && code < 0 {
		return "", responseError(code)
	}
	return line, nil
}

// readLine reads the next response line one byte at a time. Reading past
// the terminator would swallow the start of a following payload, so no
// read-ahead is allowed. The accumulated line, terminator included, may not
// exceed LineMax.
func (s *session) readLine() (string, error) {
	buf := make([]byte, 0, 64)
	var b [1]byte
	for {
		s.extendDeadline()
		if _, err := io.ReadFull(s.conn, b[:]); err != nil {
			return "", transportf("read", err)
		}
		buf = append(buf, b[0])
		if len(buf) > LineMax {
			return "", ErrResponseTooLarge
		}
		if b[0] == '\n' {
			break
		}
	}
	return strings.TrimRight(string(buf), " \t\r\n"), nil
}

// parseCount interprets a response line as a non-negative byte count.
// Negative codes never reach here; simpleResponse already converted them.
func parseCount(line string) (int64, error) {
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil || n < 0 {
		return 0, transportf("response", fmt.Errorf("expected byte count, got %q", line))
	}
	return n, nil
}
