package chirp

// Field counts for the verbs that respond with accumulated integer fields
// rather than a length-prefixed payload.
const (
	statFieldCount   = 13
	statfsFieldCount = 7
)

// Stat is the metadata a Chirp server reports for a single file or
// directory. All fields are raw integers as sent on the wire; times are
// seconds since the Unix epoch.
type Stat struct {
	Device     int64 // device number holding the file
	Inode      int64 // inode number
	Mode       int64 // permission and type bits
	Links      int64 // number of hard links
	UID        int64 // owner user ID
	GID        int64 // owner group ID
	RDevice    int64 // device number, if a special file
	Size       int64 // size in bytes
	BlockSize  int64 // block size for filesystem I/O
	Blocks     int64 // size in blocks
	AccessTime int64 // last access time
	ModifyTime int64 // last modification time
	ChangeTime int64 // last inode change time
}

func statFromFields(f []int64) Stat {
	return Stat{
		Device:     f[0],
		Inode:      f[1],
		Mode:       f[2],
		Links:      f[3],
		UID:        f[4],
		GID:        f[5],
		RDevice:    f[6],
		Size:       f[7],
		BlockSize:  f[8],
		Blocks:     f[9],
		AccessTime: f[10],
		ModifyTime: f[11],
		ChangeTime: f[12],
	}
}

// Statfs describes the filesystem holding a remote path.
type Statfs struct {
	Type        int64 // filesystem type
	BlockSize   int64 // optimal transfer block size
	Blocks      int64 // total data blocks
	BlocksFree  int64 // free blocks
	BlocksAvail int64 // free blocks available to unprivileged users
	Files       int64 // total file nodes
	FilesFree   int64 // free file nodes
}

func statfsFromFields(f []int64) Statfs {
	return Statfs{
		Type:        f[0],
		BlockSize:   f[1],
		Blocks:      f[2],
		BlocksFree:  f[3],
		BlocksAvail: f[4],
		Files:       f[5],
		FilesFree:   f[6],
	}
}

// DirEntry is one entry from a directory listing. Stat is only populated by
// the long listing form.
type DirEntry struct {
	Name string
	Stat *Stat
}
