package xdg

import (
	"errors"
	"os/user"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeDir(t *testing.T) {
	t.Run("from env", func(t *testing.T) {
		t.Setenv("HOME", "/home/user")
		assert.Equal(t, "/home/user", HomeDir())
	})
	t.Run("from passwd", func(t *testing.T) {
		t.Setenv("HOME", "")
		orig := currentUser
		defer func() { currentUser = orig }()
		currentUser = func() (*user.User, error) {
			return &user.User{HomeDir: "/home/pw"}, nil
		}
		assert.Equal(t, "/home/pw", HomeDir())
	})
	t.Run("failure", func(t *testing.T) {
		t.Setenv("HOME", "")
		orig := currentUser
		defer func() { currentUser = orig }()
		currentUser = func() (*user.User, error) {
			return nil, errors.New("no such user")
		}
		assert.Empty(t, HomeDir())
	})
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/user")
	tests := []struct {
		args     []string
		expected string
	}{
		{args: []string{"foo", "bar"}, expected: "foo/bar"},
		{args: []string{"/var/mail"}, expected: "/var/mail"},
		{args: []string{"~/Maildir", "INBOX"}, expected: "/home/user/Maildir/INBOX"},
		{args: []string{"~"}, expected: "/home/user"},
		{args: []string{"~user"}, expected: "~user"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, ExpandHome(test.args...))
		})
	}
}

func TestPaths(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("default dirs differ")
	}
	t.Setenv("HOME", "/home/user")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	assert.Equal(t, "/home/user/.config/msglist/msglist.conf",
		ConfigPath("msglist.conf"))
	assert.Equal(t, "/home/user/.cache/msglist/settings",
		CachePath("settings"))
	assert.Equal(t, "/etc/msglist.conf", ConfigPath("/etc/msglist.conf"))

	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	assert.Equal(t, "/tmp/cache/msglist/settings", CachePath("settings"))
}
