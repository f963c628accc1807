package maildir

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// A Container is a directory which contains other directories which adhere to
// the Maildir layout
type Container struct {
	dir string
}

// NewContainer creates a new container at the specified directory
func NewContainer(dir string) (*Container, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "could not open container")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}
	return &Container{dir: dir}, nil
}

// ListFolders returns a list of maildir folders in the container
func (c *Container) ListFolders() ([]string, error) {
	folders := []string{}
	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		// Skip maildir's default directories
		n := info.Name()
		if n == "new" || n == "tmp" || n == "cur" {
			return filepath.SkipDir
		}

		// Get the relative path from the parent directory
		dirPath, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}

		// Skip the parent directory
		if dirPath == "." {
			return nil
		}

		if _, err := os.Stat(filepath.Join(path, "cur")); err == nil {
			folders = append(folders, dirPath)
		}
		return nil
	})
	sort.Strings(folders)
	return folders, err
}

// OpenFolder opens a maildir folder of the container by name.
func (c *Container) OpenFolder(name string) (*Store, error) {
	return NewStore(name, filepath.Join(c.dir, name))
}
