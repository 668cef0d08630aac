package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default luamill data directory name (relative to home).
	DefaultDataDir = ".luamill"

	// ArchivesDir holds downloaded release archives. Never wiped, it acts as
	// the download cache across runs.
	ArchivesDir = "archives"
	// BuildsDir holds extraction/working trees. Wiped every run.
	BuildsDir = "builds"
	// BinariesDir holds the final per-project output trees. Wiped every run.
	BinariesDir = "binaries"

	// RunLogFile is the per-run log filename inside the data dir.
	RunLogFile = "run.log"
	// LedgerDBFile is the SQLite run ledger filename inside the data dir.
	LedgerDBFile = "luamill.db"
)

// ArchivesPath returns the archives cache directory.
func ArchivesPath(dataDir string) string { return filepath.Join(dataDir, ArchivesDir) }

// BuildsPath returns the builds working directory.
func BuildsPath(dataDir string) string { return filepath.Join(dataDir, BuildsDir) }

// BinariesPath returns the binaries output directory.
func BinariesPath(dataDir string) string { return filepath.Join(dataDir, BinariesDir) }

// ProjectOutputPath returns the output tree for one release.
func ProjectOutputPath(dataDir, release string) string {
	return filepath.Join(BinariesPath(dataDir), release)
}

// LedgerDBPath returns the run ledger database path.
func LedgerDBPath(dataDir string) string { return filepath.Join(dataDir, LedgerDBFile) }
