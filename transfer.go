package chirp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The two payload strategies of the protocol live here. Most verbs announce
// a byte count and follow it with exactly that many raw bytes; the stat
// family instead responds with whitespace-separated integer fields spread
// over however many lines the server felt like using.

// copyBlock streams exactly n announced bytes from the connection to dst,
// reading in LineMax chunks. The announced length is trusted literally:
// copyBlock does not return until all n bytes have arrived, however the
// transport chooses to deliver them, or the transport fails.
func (s *session) copyBlock(dst io.Writer, n int64) (int64, error) {
	buf := make([]byte, LineMax)
	var copied int64
	for copied < n {
		chunk := n - copied
		if chunk > int64(len(buf)) {
			chunk = int64(len(buf))
		}
		s.extendDeadline()
		rn, err := s.conn.Read(buf[:chunk])
		if rn > 0 {
			if _, werr := dst.Write(buf[:rn]); werr != nil {
				return copied, fmt.Errorf("chirp: writing local data: %w", werr)
			}
			copied += int64(rn)
		}
		if copied == n {
			break
		}
		if err != nil {
			return copied, transportf("read", err)
		}
	}
	return copied, nil
}

// readBlock reads exactly n announced bytes into memory.
func (s *session) readBlock(n int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(n))
	if _, err := s.copyBlock(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBlock streams exactly n bytes from src to the connection in LineMax
// chunks. The caller has already announced n to the server, so a source
// that runs out early is a caller error, not a transport fault.
func (s *session) writeBlock(src io.Reader, n int64) (int64, error) {
	buf := make([]byte, LineMax)
	var sent int64
	for sent < n {
		chunk := n - sent
		if chunk > int64(len(buf)) {
			chunk = int64(len(buf))
		}
		rn, err := io.ReadFull(src, buf[:chunk])
		if err != nil {
			return sent, &ArgError{Arg: "source", Reason: fmt.Sprintf(
				"ended after %d of %d declared bytes", sent+int64(rn), n)}
		}
		s.extendDeadline()
		if _, werr := s.conn.Write(buf[:rn]); werr != nil {
			return sent, transportf("write", werr)
		}
		sent += int64(rn)
	}
	return sent, nil
}

// readFields accumulates whitespace-separated integer tokens, reading line
// after line and re-splitting the whole accumulation each time, until the
// verb's fixed field count is reached.
func (s *session) readFields(count int) ([]int64, error) {
	var (
		data   strings.Builder
		tokens []string
	)
	for len(tokens) < count {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		data.WriteByte(' ')
		data.WriteString(line)
		tokens = strings.Fields(data.String())
	}

	out := make([]int64, count)
	for i, tok := range tokens[:count] {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, transportf("response", fmt.Errorf("bad metadata field %q", tok))
		}
		out[i] = v
	}
	return out, nil
}
