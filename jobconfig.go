package chirp

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// JobConfigFile is the well-known name of the connection-parameter file the
// starter drops into a job's scratch directory when the job requests an
// I/O proxy.
const JobConfigFile = ".chirp.config"

const scratchDirEnv = "_CONDOR_SCRATCH_DIR"

// ReadJobConfig parses a .chirp.config file: a single line holding the
// proxy's host, port and cookie separated by whitespace. The returned
// Config is ready for New; callers may still override Timeout or attach a
// Logger or Registerer.
func ReadJobConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) != 3 {
		return Config{}, fmt.Errorf("chirp: malformed %s: want host, port and cookie", path)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return Config{}, fmt.Errorf("chirp: malformed %s: bad port %q", path, fields[1])
	}
	return Config{
		Host:   fields[0],
		Port:   port,
		Auth:   []AuthMethod{AuthCookie},
		Cookie: fields[2],
	}, nil
}

// DiscoverConfig reads the job's own .chirp.config, located through the
// scratch-directory environment variable, falling back to the working
// directory when the variable is unset.
func DiscoverConfig() (Config, error) {
	dir := os.Getenv(scratchDirEnv)
	if dir == "" {
		dir = "."
	}
	return ReadJobConfig(filepath.Join(dir, JobConfigFile))
}
