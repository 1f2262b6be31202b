package chirp

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateCookie(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		s, server := pipeSession(t)
		go func() {
			br := bufio.NewReader(server)
			line, err := br.ReadString('\n')
			if err != nil || line != "cookie s3cret\n" {
				server.Write([]byte("-1\n"))
				return
			}
			server.Write([]byte("0\n"))
		}()

		require.NoError(t, s.authenticate(AuthCookie, "s3cret"))
	})

	t.Run("rejected with code", func(t *testing.T) {
		s, server := pipeSession(t)
		go func() {
			bufio.NewReader(server).ReadString('\n')
			server.Write([]byte("-1\n"))
		}()

		require.ErrorIs(t, s.authenticate(AuthCookie, "wrong"), ErrorNotAuthenticated)
	})

	t.Run("rejected with text", func(t *testing.T) {
		s, server := pipeSession(t)
		go func() {
			bufio.NewReader(server).ReadString('\n')
			server.Write([]byte("nope\n"))
		}()

		require.ErrorIs(t, s.authenticate(AuthCookie, "wrong"), ErrorNotAuthenticated)
	})

	t.Run("transport fault", func(t *testing.T) {
		s, server := pipeSession(t)
		go func() {
			bufio.NewReader(server).ReadString('\n')
			server.Close()
		}()

		require.ErrorIs(t, s.authenticate(AuthCookie, "s3cret"), ErrorNotAuthenticated)
	})
}

func TestAuthenticateUnimplementedMethods(t *testing.T) {
	for _, method := range []AuthMethod{AuthHostname, AuthUnix, AuthKerberos, AuthGlobus} {
		t.Run(string(method), func(t *testing.T) {
			s, _ := pipeSession(t)

			err := s.authenticate(method, "")
			var unsup *UnsupportedAuthError
			require.ErrorAs(t, err, &unsup)
			require.Equal(t, method, unsup.Method)
		})
	}
}

func TestAuthenticateUnknownMethod(t *testing.T) {
	s, _ := pipeSession(t)

	err := s.authenticate(AuthMethod("ntlm"), "")
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
}

func TestSessionCloseIdempotent(t *testing.T) {
	s, _ := pipeSession(t)
	s.fds[3] = openFile{path: "/x", flags: "r", mode: DefaultMode}

	require.NoError(t, s.Close())
	require.Equal(t, stateClosed, s.state)
	require.Empty(t, s.fds)

	// A second close is a no-op, not a double close of the socket.
	require.NoError(t, s.Close())
}

func TestOpenFlagValidation(t *testing.T) {
	s, _ := pipeSession(t)

	var argErr *ArgError
	_, err := s.open("/x", "", 0)
	require.ErrorAs(t, err, &argErr)

	_, err = s.open("/x", "rz", 0)
	require.ErrorAs(t, err, &argErr)
}

func TestDescriptorLifecycle(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)

		line, _ := br.ReadString('\n')
		// Zero mode falls back to the default 0777, sent as decimal.
		if line != "open /data/out.txt wt 511\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("3\n"))

		line, _ = br.ReadString('\n')
		if line != "close 3\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("0\n"))
	}()

	fd, err := s.open("/data/out.txt", "wt", 0)
	require.NoError(t, err)
	require.Equal(t, 3, fd)
	require.Equal(t, openFile{path: "/data/out.txt", flags: "wt", mode: DefaultMode}, s.fds[fd])

	require.NoError(t, s.closeFD(fd))
	require.Empty(t, s.fds)
}

func TestCloseFDUnknownDescriptor(t *testing.T) {
	s, _ := pipeSession(t)

	// Local bookkeeping rejects the descriptor before anything is sent.
	require.ErrorIs(t, s.closeFD(99), ErrorBadFD)
}

func TestPreadFD(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "pread 3 5 100\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("5\nhello"))
	}()

	data, err := s.preadFD(3, 5, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestSreadFDCommandShape(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "sread 3 12 0 4 8\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("0\n"))
	}()

	data, err := s.sreadFD(3, 12, 0, 4, 8)
	require.NoError(t, err)
	require.Empty(t, data)
}

// The server may accept fewer bytes than offered; only that many go on the
// wire.
func TestWriteFDHonorsServerCount(t *testing.T) {
	s, server := pipeSession(t)

	got := make(chan []byte, 1)
	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "write 3 10\n" {
			server.Write([]byte("-8\n"))
			got <- nil
			return
		}
		server.Write([]byte("4\n"))

		buf := make([]byte, 4)
		io.ReadFull(br, buf)
		got <- buf
	}()

	n, err := s.writeFD(3, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, []byte("0123"), <-got)
}

func TestReadFD(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "read 3 8\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("8\n01234567"))
	}()

	data, err := s.readFD(3, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("01234567"), data)
}

func TestPwriteFDCommandShape(t *testing.T) {
	s, server := pipeSession(t)

	got := make(chan []byte, 1)
	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "pwrite 3 5 200\n" {
			server.Write([]byte("-8\n"))
			got <- nil
			return
		}
		server.Write([]byte("5\n"))

		buf := make([]byte, 5)
		io.ReadFull(br, buf)
		got <- buf
	}()

	n, err := s.pwriteFD(3, []byte("hello"), 200)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, []byte("hello"), <-got)
}

func TestSwriteFDCommandShape(t *testing.T) {
	s, server := pipeSession(t)

	got := make(chan []byte, 1)
	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "swrite 3 8 0 4 8\n" {
			server.Write([]byte("-8\n"))
			got <- nil
			return
		}
		server.Write([]byte("8\n"))

		buf := make([]byte, 8)
		io.ReadFull(br, buf)
		got <- buf
	}()

	n, err := s.swriteFD(3, []byte("abcdefgh"), 0, 4, 8)
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
	require.Equal(t, []byte("abcdefgh"), <-got)
}

func TestFsyncFD(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "fsync 3\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("0\n"))
	}()

	require.NoError(t, s.fsyncFD(3))
}

func TestLseekFD(t *testing.T) {
	s, server := pipeSession(t)

	go func() {
		br := bufio.NewReader(server)
		line, _ := br.ReadString('\n')
		if line != "lseek 3 512 0\n" {
			server.Write([]byte("-8\n"))
			return
		}
		server.Write([]byte("512\n"))
	}()

	pos, err := s.lseekFD(3, 512, 0)
	require.NoError(t, err)
	require.Equal(t, int64(512), pos)
}

func TestDialSession(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				br := bufio.NewReader(conn)
				line, err := br.ReadString('\n')
				if err != nil {
					return
				}
				if line == "cookie s3cret\n" {
					conn.Write([]byte("0\n"))
					// Hold the connection open until the client hangs up.
					br.ReadString('\n')
				} else {
					conn.Write([]byte("-1\n"))
				}
			}(conn)
		}
	}()

	addr := lis.Addr().(*net.TCPAddr)
	cfg := &Config{Host: "127.0.0.1", Port: addr.Port, Cookie: "s3cret", Timeout: 2 * time.Second}

	t.Run("authenticates", func(t *testing.T) {
		s, err := dialSession(cfg, AuthCookie, log.NewNopLogger())
		require.NoError(t, err)
		require.Equal(t, stateReady, s.state)
		require.NoError(t, s.Close())
	})

	t.Run("bad cookie", func(t *testing.T) {
		bad := *cfg
		bad.Cookie = "nope"
		_, err := dialSession(&bad, AuthCookie, log.NewNopLogger())
		require.ErrorIs(t, err, ErrorNotAuthenticated)
	})

	t.Run("refused connection", func(t *testing.T) {
		closed, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := closed.Addr().(*net.TCPAddr).Port
		require.NoError(t, closed.Close())

		down := &Config{Host: "127.0.0.1", Port: port, Cookie: "s3cret", Timeout: time.Second}
		_, err = dialSession(down, AuthCookie, log.NewNopLogger())

		var te *TransportError
		require.ErrorAs(t, err, &te)
	})
}
