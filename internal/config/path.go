package config

import (
	"os"
	"path/filepath"
	"strings"
)

// memoryDatabase is the SQLite DSN for a throwaway database; it is not a path.
const memoryDatabase = ":memory:"

// ExpandPath resolves a leading ~ to the home directory and substitutes
// $VAR references, so database.path and output.dir can be written portably.
// The in-memory database DSN is returned untouched.
func ExpandPath(p string) string {
	if p == "" || p == memoryDatabase {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return os.ExpandEnv(p)
}
