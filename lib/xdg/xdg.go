// Package xdg locates the msglist configuration file and settings database.
package xdg

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"git.sr.ht/~rjarry/msglist/lib/log"
)

const app = "msglist"

// replaced in tests
var currentUser = user.Current

// HomeDir returns $HOME, falling back on the passwd entry when unset.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		u, e := currentUser()
		if e != nil {
			log.Errorf("HomeDir: %s (while handling %s)", e, err)
			return ""
		}
		home = u.HomeDir
	}
	return home
}

// ExpandHome joins fragments and replaces a leading ~ with the home dir.
func ExpandHome(fragments ...string) string {
	res := filepath.Join(fragments...)
	if strings.HasPrefix(res, "~/") || res == "~" {
		res = HomeDir() + strings.TrimPrefix(res, "~")
	}
	return res
}

func under(base string, paths []string) string {
	res := filepath.Join(paths...)
	if filepath.IsAbs(res) {
		return res
	}
	return filepath.Join(base, app, res)
}

// ConfigPath returns paths relative to the msglist config dir. Absolute
// paths are returned as is.
func ConfigPath(paths ...string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" && runtime.GOOS == "darwin" {
		config = ExpandHome("~/Library/Preferences")
	}
	if config == "" {
		var err error
		config, err = os.UserConfigDir()
		if err != nil {
			config = ExpandHome("~/.config")
		}
	}
	return under(config, paths)
}

// CachePath returns paths relative to the msglist cache dir, where view
// settings are stored.
func CachePath(paths ...string) string {
	cache := os.Getenv("XDG_CACHE_HOME")
	if cache == "" {
		var err error
		cache, err = os.UserCacheDir()
		if err != nil {
			cache = ExpandHome("~/.cache")
		}
	}
	return under(cache, paths)
}
