package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~rjarry/msglist/lib/hide"
	"git.sr.ht/~rjarry/msglist/lib/msglist"
)

func TestSettings(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
	}{
		{"memory", func(*testing.T) string { return "" }},
		{"leveldb", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "settings")
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := Open(test.dir(t))
			defer s.Close()

			state, err := s.Load("INBOX")
			require.NoError(t, err)
			assert.Nil(t, state)

			saved := &msglist.FolderState{
				Sort:      []string{"-r", "date"},
				Columns:   []string{"flags", "subject"},
				HideLower: -3,
				HideUpper: hide.End,
			}
			require.NoError(t, s.Save("INBOX", saved))
			require.NoError(t, s.Save("Archive", &msglist.FolderState{}))

			state, err = s.Load("INBOX")
			require.NoError(t, err)
			assert.Equal(t, saved, state)

			folders, err := s.Folders()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"INBOX", "Archive"}, folders)
		})
	}
}

func TestSettingsReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings")
	s := Open(dir)
	require.NoError(t, s.Save("INBOX", &msglist.FolderState{HideUpper: 2}))
	require.NoError(t, s.Close())

	s = Open(dir)
	defer s.Close()
	state, err := s.Load("INBOX")
	require.NoError(t, err)
	assert.Equal(t, 2, state.HideUpper)
}
