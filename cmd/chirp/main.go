// Command chirp performs remote I/O through an HTCondor job's Chirp proxy.
//
// Connection parameters are discovered from the job's .chirp.config file
// unless overridden with flags, so inside a job sandbox it works with no
// configuration at all:
//
//	chirp ulog "checkpoint written"
//	chirp fetch input.dat /tmp/input.dat
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hpcops/chirp"
	"github.com/hpcops/chirp/internal/cmdutil"
)

func main() {
	var (
		ll cmdutil.LogLevel
		lf cmdutil.LogFormat

		host       string
		port       int
		cookie     string
		configPath string
		timeout    time.Duration
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.Var(&lf, "log.format", "Format to display logs in (logfmt, json)")
	fs.StringVar(&host, "host", "", "Chirp server host, overriding the job config")
	fs.IntVar(&port, "port", 0, "Chirp server port, overriding the job config")
	fs.StringVar(&cookie, "cookie", "", "shared secret for cookie authentication, overriding the job config")
	fs.StringVar(&configPath, "config", "", "path to a .chirp.config file (default: discovered from the scratch directory)")
	fs.DurationVar(&timeout, "timeout", chirp.DefaultTimeout, "timeout for each socket operation")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s\n", err.Error())
		os.Exit(1)
	}

	l := cmdutil.NewLogger(os.Stderr, ll, lf, "chirp")

	if fs.NArg() < 1 {
		usage(fs)
		os.Exit(1)
	}
	name := fs.Arg(0)
	args := fs.Args()[1:]

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(fs)
		os.Exit(1)
	}
	if len(args) != cmd.argc {
		fmt.Fprintf(os.Stderr, "usage: %s %s %s\n", os.Args[0], name, cmd.usage)
		os.Exit(1)
	}

	if err := run(l, cmd, args, host, port, cookie, configPath, timeout); err != nil {
		level.Error(l).Log("msg", "command failed", "command", name, "err", err)
		os.Exit(1)
	}
}

func run(l log.Logger, cmd command, args []string, host string, port int, cookie, configPath string, timeout time.Duration) error {
	cfg, err := resolveConfig(host, port, cookie, configPath)
	if err != nil {
		return err
	}
	cfg.Timeout = timeout
	cfg.Logger = l

	c, err := chirp.New(cfg)
	if err != nil {
		return err
	}
	return cmd.run(c, args)
}

// resolveConfig starts from the job config, unless the host flag is given,
// and lets individual flags override single fields.
func resolveConfig(host string, port int, cookie, configPath string) (chirp.Config, error) {
	var (
		cfg chirp.Config
		err error
	)
	switch {
	case host != "" && cookie != "":
		// Fully specified on the command line; no job config needed.
	case configPath != "":
		cfg, err = chirp.ReadJobConfig(configPath)
	default:
		cfg, err = chirp.DiscoverConfig()
	}
	if err != nil {
		return chirp.Config{}, err
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if cookie != "" {
		cfg.Cookie = cookie
	}
	return cfg, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> [args]\n\ncommands:\n", os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	fs.PrintDefaults()
}

type command struct {
	usage string
	argc  int
	run   func(c *chirp.Client, args []string) error
}

var commands = map[string]command{
	"fetch": {"<remote> <local>", 2, func(c *chirp.Client, a []string) error {
		_, err := c.Fetch(a[0], a[1])
		return err
	}},
	"put": {"<local> <remote>", 2, func(c *chirp.Client, a []string) error {
		_, err := c.Put(a[0], a[1], 0)
		return err
	}},
	"remove": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		return c.Remove(a[0])
	}},
	"rename": {"<old> <new>", 2, func(c *chirp.Client, a []string) error {
		return c.Rename(a[0], a[1])
	}},
	"mkdir": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		return c.Mkdir(a[0], 0)
	}},
	"rmdir": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		return c.Rmdir(a[0], false)
	}},
	"rmall": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		return c.Rmall(a[0])
	}},
	"getdir": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		names, err := c.GetDir(a[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}},
	"link": {"<old> <new>", 2, func(c *chirp.Client, a []string) error {
		return c.Link(a[0], a[1])
	}},
	"symlink": {"<old> <new>", 2, func(c *chirp.Client, a []string) error {
		return c.Symlink(a[0], a[1])
	}},
	"readlink": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		return printText(c.Readlink(a[0]))
	}},
	"stat": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		st, err := c.Stat(a[0])
		if err != nil {
			return err
		}
		printStat(st)
		return nil
	}},
	"lstat": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		st, err := c.Lstat(a[0])
		if err != nil {
			return err
		}
		printStat(st)
		return nil
	}},
	"statfs": {"<remote>", 1, func(c *chirp.Client, a []string) error {
		fs, err := c.StatFS(a[0])
		if err != nil {
			return err
		}
		fmt.Printf("type %d\nf_bsize %d\nf_blocks %d\nf_bfree %d\nf_bavail %d\nf_files %d\nf_ffree %d\n",
			fs.Type, fs.BlockSize, fs.Blocks, fs.BlocksFree, fs.BlocksAvail, fs.Files, fs.FilesFree)
		return nil
	}},
	"access": {"<remote> <frwx>", 2, func(c *chirp.Client, a []string) error {
		return c.Access(a[0], a[1])
	}},
	"chmod": {"<remote> <mode>", 2, func(c *chirp.Client, a []string) error {
		mode, err := parseMode(a[1])
		if err != nil {
			return err
		}
		return c.Chmod(a[0], mode)
	}},
	"chown": {"<remote> <uid> <gid>", 3, func(c *chirp.Client, a []string) error {
		uid, gid, err := parseOwner(a[1], a[2])
		if err != nil {
			return err
		}
		return c.Chown(a[0], uid, gid)
	}},
	"lchown": {"<remote> <uid> <gid>", 3, func(c *chirp.Client, a []string) error {
		uid, gid, err := parseOwner(a[1], a[2])
		if err != nil {
			return err
		}
		return c.Lchown(a[0], uid, gid)
	}},
	"truncate": {"<remote> <length>", 2, func(c *chirp.Client, a []string) error {
		length, err := strconv.ParseInt(a[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad length %q", a[1])
		}
		return c.Truncate(a[0], length)
	}},
	"utime": {"<remote> <atime> <mtime>", 3, func(c *chirp.Client, a []string) error {
		atime, err := strconv.ParseInt(a[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad atime %q", a[1])
		}
		mtime, err := strconv.ParseInt(a[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad mtime %q", a[2])
		}
		return c.Utime(a[0], atime, mtime)
	}},
	"whoami": {"", 0, func(c *chirp.Client, a []string) error {
		return printText(c.Whoami())
	}},
	"whoareyou": {"<host>", 1, func(c *chirp.Client, a []string) error {
		return printText(c.Whoareyou(a[0]))
	}},
	"get_job_attr": {"<name>", 1, func(c *chirp.Client, a []string) error {
		return printText(c.GetJobAttr(a[0]))
	}},
	"set_job_attr": {"<name> <value>", 2, func(c *chirp.Client, a []string) error {
		return c.SetJobAttr(a[0], a[1])
	}},
	"ulog": {"<text>", 1, func(c *chirp.Client, a []string) error {
		return c.Ulog(a[0])
	}},
	"phase": {"<phase>", 1, func(c *chirp.Client, a []string) error {
		return c.Phase(a[0])
	}},
}

func printText(s string, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

func printStat(st chirp.Stat) {
	fmt.Printf("device %d\ninode %d\nmode %o\nnlink %d\nuid %d\ngid %d\nrdevice %d\nsize %d\nblksize %d\nblocks %d\natime %d\nmtime %d\nctime %d\n",
		st.Device, st.Inode, st.Mode, st.Links, st.UID, st.GID, st.RDevice,
		st.Size, st.BlockSize, st.Blocks, st.AccessTime, st.ModifyTime, st.ChangeTime)
}

func parseMode(s string) (int64, error) {
	// Modes on the command line read as octal, like chmod(1).
	mode, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("bad mode %q", s)
	}
	return mode, nil
}

func parseOwner(uidArg, gidArg string) (uid, gid int64, err error) {
	uid, err = strconv.ParseInt(uidArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad uid %q", uidArg)
	}
	gid, err = strconv.ParseInt(gidArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad gid %q", gidArg)
	}
	return uid, gid, nil
}
