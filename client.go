package chirp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds each socket connect, read and write when Config
// leaves Timeout unset.
const DefaultTimeout = 10 * time.Second

// Config holds the connection parameters for a Client. It is not modified
// after New returns.
type Config struct {
	// Host and Port of the Chirp server. Port must be in 1-65535.
	Host string
	Port int

	// Auth lists the authentication methods to try, in order. Defaults to
	// cookie only, which is the only method this client implements.
	Auth []AuthMethod

	// Cookie is the shared secret for cookie authentication.
	Cookie string

	// Timeout bounds each socket operation. Defaults to DefaultTimeout.
	// Zero or negative after defaulting means no deadline.
	Timeout time.Duration

	// Logger receives debug-level activity. nil discards everything.
	Logger log.Logger

	// Registerer optionally receives client metrics. nil disables
	// instrumentation.
	Registerer prometheus.Registerer
}

// Client performs Chirp operations against one server. Every method opens
// its own authenticated connection and closes it before returning, so a
// Client may be shared between goroutines.
type Client struct {
	cfg     Config
	log     log.Logger
	auth    AuthMethod
	metrics *metrics
}

// New validates cfg and probes the configured authentication methods in
// order, keeping the first one the server accepts for use by every later
// operation. A method the client does not implement fails construction
// immediately; a method the server rejects is skipped. If no method
// succeeds, the returned error names every method attempted and matches
// ErrorNotAuthenticated.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, &ArgError{Arg: "host", Reason: "must not be empty"}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, &ArgError{Arg: "port", Reason: fmt.Sprintf("%d outside 1-65535", cfg.Port)}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Auth) == 0 {
		cfg.Auth = []AuthMethod{AuthCookie}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}

	c := &Client{cfg: cfg, log: cfg.Logger, metrics: newMetrics(cfg.Registerer)}

	var merr *multierror.Error
	for _, method := range cfg.Auth {
		s, err := dialSession(&c.cfg, method, c.log)
		if err == nil {
			// The probe connection is only for negotiation; every operation
			// dials its own.
			s.Close()
			c.auth = method
			level.Debug(c.log).Log("msg", "authenticated", "method", method)
			return c, nil
		}
		if !errors.Is(err, ErrorNotAuthenticated) {
			// Unimplemented or unknown methods and transport faults are not
			// soft failures to skip past.
			return nil, err
		}
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", method, err))
	}
	return nil, fmt.Errorf("chirp: could not authenticate with methods %v: %w",
		cfg.Auth, merr.ErrorOrNil())
}

// AuthMethod returns the method negotiated at construction.
func (c *Client) AuthMethod() AuthMethod { return c.auth }

// String implements fmt.Stringer.
func (c *Client) String() string {
	return fmt.Sprintf("chirp.Client(%s:%d) using %s authentication",
		c.cfg.Host, c.cfg.Port, c.auth)
}

// run acquires a fresh session, invokes fn and releases the session on
// every exit path, whether fn returns a server error or the transport
// faults halfway through an exchange.
func (c *Client) run(verb string, fn func(*session) error) (err error) {
	defer func() { c.metrics.observe(verb, err) }()

	s, err := dialSession(&c.cfg, c.auth, c.log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// simple runs a verb whose entire result is its response line.
func (c *Client) simple(verb string, args ...string) error {
	return c.run(verb, func(s *session) error {
		_, err := s.simpleCommand(buildCommand(verb, args...))
		return err
	})
}

// fetchText runs a verb that announces a length and follows it with a text
// payload.
func (c *Client) fetchText(verb string, args ...string) (string, error) {
	var out string
	err := c.run(verb, func(s *session) error {
		data, err := s.readVerb(buildCommand(verb, args...))
		if err != nil {
			return err
		}
		out = string(data)
		return nil
	})
	return out, err
}

// Job metadata operations. These are HTCondor extensions to the base
// protocol: the server brokers them to the job-management service.

// GetJobAttr returns the value of a job ClassAd attribute.
func (c *Client) GetJobAttr(attr string) (string, error) {
	return c.fetchText("get_job_attr", Quote(attr))
}

// GetJobAttrDelayed returns the value of a job ClassAd attribute as known
// by the local starter, which may lag the schedd's value.
func (c *Client) GetJobAttrDelayed(attr string) (string, error) {
	return c.fetchText("get_job_attr_delayed", Quote(attr))
}

// SetJobAttr sets the value of a job ClassAd attribute.
func (c *Client) SetJobAttr(attr, value string) error {
	return c.simple("set_job_attr", Quote(attr), Quote(value))
}

// SetJobAttrDelayed sets a job ClassAd attribute as a non-durable update,
// pushed on the next starter/shadow exchange rather than immediately.
func (c *Client) SetJobAttrDelayed(attr, value string) error {
	return c.simple("set_job_attr_delayed", Quote(attr), Quote(value))
}

// Ulog appends a line to the job event log.
func (c *Client) Ulog(text string) error {
	return c.simple("ulog", Quote(text))
}

// Phase tells the server the job is changing phases.
func (c *Client) Phase(phase string) error {
	return c.simple("phase", Quote(phase))
}

// Namespace operations.

// Rename moves a remote file.
func (c *Client) Rename(oldPath, newPath string) error {
	return c.simple("rename", Quote(oldPath), Quote(newPath))
}

// Unlink deletes a remote file.
func (c *Client) Unlink(remote string) error {
	return c.simple("unlink", Quote(remote))
}

// Remove is an alias for Unlink.
func (c *Client) Remove(remote string) error { return c.Unlink(remote) }

// Mkdir creates a remote directory. A zero mode falls back to DefaultMode.
func (c *Client) Mkdir(remote string, mode int64) error {
	if mode == 0 {
		mode = DefaultMode
	}
	return c.simple("mkdir", Quote(remote), formatInt(mode))
}

// Rmdir deletes a remote directory, which must be empty unless recursive is
// set.
func (c *Client) Rmdir(remote string, recursive bool) error {
	if recursive {
		return c.Rmall(remote)
	}
	return c.simple("rmdir", Quote(remote))
}

// Rmall recursively deletes an entire remote directory.
func (c *Client) Rmall(remote string) error {
	return c.simple("rmall", Quote(remote))
}

// Link creates a hard link on the remote machine.
func (c *Client) Link(oldPath, newPath string) error {
	return c.simple("link", Quote(oldPath), Quote(newPath))
}

// Symlink creates a symbolic link on the remote machine.
func (c *Client) Symlink(oldPath, newPath string) error {
	return c.simple("symlink", Quote(oldPath), Quote(newPath))
}

// Readlink returns the target of a remote symbolic link.
func (c *Client) Readlink(remote string) (string, error) {
	return c.fetchText("readlink", Quote(remote))
}

// Whole-file transfer.

// GetFileTo downloads a remote file, streaming its contents to dst, and
// returns the number of payload bytes received.
func (c *Client) GetFileTo(remote string, dst io.Writer) (int64, error) {
	var n int64
	err := c.run("getfile", func(s *session) error {
		line, err := s.simpleCommand(buildCommand("getfile", Quote(remote)))
		if err != nil {
			return err
		}
		length, err := parseCount(line)
		if err != nil {
			return err
		}
		n, err = s.copyBlock(dst, length)
		return err
	})
	c.metrics.addReceived(n)
	return n, err
}

// GetFile downloads a remote file to a local path.
func (c *Client) GetFile(remote, local string) (int64, error) {
	f, err := os.Create(local)
	if err != nil {
		return 0, err
	}
	n, err := c.GetFileTo(remote, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Fetch is an alias for GetFile.
func (c *Client) Fetch(remote, local string) (int64, error) {
	return c.GetFile(remote, local)
}

// PutFileFrom uploads size bytes from src to a remote path. size is
// declared to the server up front, so src must deliver exactly that many
// bytes. A zero mode falls back to DefaultMode.
func (c *Client) PutFileFrom(remote string, mode int64, src io.Reader, size int64) (int64, error) {
	if size < 0 {
		return 0, &ArgError{Arg: "size", Reason: "must not be negative"}
	}
	if mode == 0 {
		mode = DefaultMode
	}
	var n int64
	err := c.run("putfile", func(s *session) error {
		_, err := s.simpleCommand(buildCommand("putfile", Quote(remote), formatInt(mode), formatInt(size)))
		if err != nil {
			return err
		}
		n, err = s.writeBlock(src, size)
		return err
	})
	c.metrics.addSent(n)
	return n, err
}

// PutFile uploads a local file to a remote path, declaring the local file's
// current size as the transfer length.
func (c *Client) PutFile(local, remote string, mode int64) (int64, error) {
	f, err := os.Open(local)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return c.PutFileFrom(remote, mode, f, fi.Size())
}

// Put is an alias for PutFile.
func (c *Client) Put(local, remote string, mode int64) (int64, error) {
	return c.PutFile(local, remote, mode)
}

// Directory listing.

// GetDir lists the names in a remote directory, in server order.
func (c *Client) GetDir(remote string) ([]string, error) {
	out, err := c.fetchText("getdir", Quote(remote))
	if err != nil {
		return nil, err
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ReadDir lists a remote directory in the long form: every entry carries
// its metadata. Server order is preserved.
func (c *Client) ReadDir(remote string) ([]DirEntry, error) {
	var entries []DirEntry
	err := c.run("getlongdir", func(s *session) error {
		data, err := s.readVerb(buildCommand("getlongdir", Quote(remote)))
		if err != nil {
			return err
		}

		// The payload alternates a name line with a stat line.
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if len(lines) == 1 && lines[0] == "" {
			return nil
		}
		if len(lines)%2 != 0 {
			return transportf("response", fmt.Errorf("odd line count %d in long listing", len(lines)))
		}
		for i := 0; i < len(lines); i += 2 {
			fields, err := splitStatLine(lines[i+1])
			if err != nil {
				return err
			}
			st := statFromFields(fields)
			entries = append(entries, DirEntry{Name: lines[i], Stat: &st})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLongDir lists a remote directory and returns each entry's metadata
// keyed by name.
func (c *Client) GetLongDir(remote string) (map[string]Stat, error) {
	entries, err := c.ReadDir(remote)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Stat, len(entries))
	for _, ent := range entries {
		out[ent.Name] = *ent.Stat
	}
	return out, nil
}

func splitStatLine(line string) ([]int64, error) {
	raw := strings.Fields(line)
	if len(raw) != statFieldCount {
		return nil, transportf("response", fmt.Errorf("stat line has %d fields, want %d", len(raw), statFieldCount))
	}
	out := make([]int64, statFieldCount)
	for i, tok := range raw {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, transportf("response", fmt.Errorf("bad metadata field %q", tok))
		}
		out[i] = v
	}
	return out, nil
}

// Identity.

// Whoami returns the user's identity with respect to this server.
func (c *Client) Whoami() (string, error) {
	return c.fetchText("whoami", strconv.Itoa(LineMax))
}

// Whoareyou returns the server's identity with respect to a remote host.
func (c *Client) Whoareyou(remoteHost string) (string, error) {
	return c.fetchText("whoareyou", Quote(remoteHost), strconv.Itoa(LineMax))
}

// File metadata.

// Stat returns metadata for a remote path, following symbolic links.
func (c *Client) Stat(remote string) (Stat, error) {
	var out Stat
	err := c.run("stat", func(s *session) error {
		if _, err := s.simpleCommand(buildCommand("stat", Quote(remote))); err != nil {
			return err
		}
		fields, err := s.readFields(statFieldCount)
		if err != nil {
			return err
		}
		out = statFromFields(fields)
		return nil
	})
	return out, err
}

// Lstat returns metadata for a remote path. If the path is a symbolic
// link, the link itself is examined.
func (c *Client) Lstat(remote string) (Stat, error) {
	var out Stat
	err := c.run("lstat", func(s *session) error {
		if _, err := s.simpleCommand(buildCommand("lstat", Quote(remote))); err != nil {
			return err
		}
		fields, err := s.readFields(statFieldCount)
		if err != nil {
			return err
		}
		out = statFromFields(fields)
		return nil
	})
	return out, err
}

// StatFS returns metadata for the filesystem holding a remote path.
func (c *Client) StatFS(remote string) (Statfs, error) {
	var out Statfs
	err := c.run("statfs", func(s *session) error {
		if _, err := s.simpleCommand(buildCommand("statfs", Quote(remote))); err != nil {
			return err
		}
		fields, err := s.readFields(statfsFieldCount)
		if err != nil {
			return err
		}
		out = statfsFromFields(fields)
		return nil
	})
	return out, err
}

// accessBits maps the letters accepted by Access onto the "other"
// permission bits the server expects.
var accessBits = map[byte]int64{
	'f': 0,
	'r': 0o4,
	'w': 0o2,
	'x': 0o1,
}

// Access checks whether the given access modes are permitted. mode is one
// or more of the letters f, r, w and x. Failure is reported as
// ErrorNotAuthorized.
func (c *Client) Access(remote, mode string) error {
	if mode == "" {
		return &ArgError{Arg: "mode", Reason: "must be one or more of (frwx)"}
	}
	var bits int64
	for i := 0; i < len(mode); i++ {
		b, ok := accessBits[mode[i]]
		if !ok {
			return &ArgError{Arg: "mode", Reason: fmt.Sprintf("%q not in (frwx)", mode[i])}
		}
		bits |= b
	}
	return c.simple("access", Quote(remote), formatInt(bits))
}

// Chmod changes the permission mode of a remote path.
func (c *Client) Chmod(remote string, mode int64) error {
	return c.simple("chmod", Quote(remote), formatInt(mode))
}

// Chown changes the ownership of a remote path, following symbolic links.
func (c *Client) Chown(remote string, uid, gid int64) error {
	return c.simple("chown", Quote(remote), formatInt(uid), formatInt(gid))
}

// Lchown changes the ownership of a remote path. If the path is a symbolic
// link, the link itself is changed.
func (c *Client) Lchown(remote string, uid, gid int64) error {
	return c.simple("lchown", Quote(remote), formatInt(uid), formatInt(gid))
}

// Truncate truncates a remote file to the given length.
func (c *Client) Truncate(remote string, length int64) error {
	return c.simple("truncate", Quote(remote), formatInt(length))
}

// Utime sets the access and modification times of a remote file, in
// seconds since the Unix epoch.
func (c *Client) Utime(remote string, atime, mtime int64) error {
	return c.simple("utime", Quote(remote), formatInt(atime), formatInt(mtime))
}
