package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

func makeMaildir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"cur", "new", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "INBOX", sub), 0o700))
	}
	return filepath.Join(root, "INBOX")
}

func deliver(t *testing.T, dir, name, subject string) {
	t.Helper()
	body := fmt.Sprintf("Subject: %s\r\nMessage-ID: <%s@test>\r\n"+
		"Date: Mon, 01 May 2023 08:30:00 +0000\r\n\r\nhello\r\n",
		subject, splitName(name))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestMaildirStore(t *testing.T) {
	dir := makeMaildir(t)
	deliver(t, filepath.Join(dir, "cur"), "1000.a.host:2,S", "first")
	deliver(t, filepath.Join(dir, "new"), "2000.b.host", "second")

	s, err := NewStore("INBOX", dir)
	require.NoError(t, err)
	defer s.Close()

	uids, err := s.Uids(context.Background())
	require.NoError(t, err)
	require.Len(t, uids, 2)

	first, err := s.Record(context.Background(), uids[0])
	require.NoError(t, err)
	assert.Equal(t, "first", first.Subject)
	assert.True(t, first.Flags.Has(models.SeenFlag))
	assert.Equal(t, "1000.a.host@test", first.MessageId)

	second, err := s.Record(context.Background(), uids[1])
	require.NoError(t, err)
	assert.Equal(t, "second", second.Subject)
	assert.False(t, second.Flags.Has(models.SeenFlag))

	unread, err := s.Search(context.Background(), "-u")
	require.NoError(t, err)
	assert.Equal(t, []models.UID{uids[1]}, unread)

	_, err = s.Search(context.Background(), "-x bogus")
	var qerr *types.QueryError
	assert.ErrorAs(t, err, &qerr)

	missing, err := s.Record(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMaildirScanChanges(t *testing.T) {
	dir := makeMaildir(t)
	cur := filepath.Join(dir, "cur")
	deliver(t, cur, "1000.a.host:2,", "first")
	deliver(t, cur, "2000.b.host:2,", "second")

	s, err := NewStore("INBOX", dir)
	require.NoError(t, err)
	defer s.Close()
	uids, err := s.Uids(context.Background())
	require.NoError(t, err)

	r, err := s.Record(context.Background(), uids[0])
	require.NoError(t, err)
	assert.False(t, r.Flags.Has(models.FlaggedFlag))

	require.NoError(t, os.Rename(filepath.Join(cur, "1000.a.host:2,"),
		filepath.Join(cur, "1000.a.host:2,F")))
	require.NoError(t, os.Remove(filepath.Join(cur, "2000.b.host:2,")))
	deliver(t, filepath.Join(dir, "new"), "3000.c.host", "third")

	changes, after, err := s.scan()
	require.NoError(t, err)
	assert.Equal(t, []models.UID{uids[0]}, changes.Changed)
	assert.Equal(t, []models.UID{uids[1]}, changes.Removed)
	assert.Len(t, changes.Added, 1)
	assert.Len(t, after, 2)

	r, err = s.Record(context.Background(), uids[0])
	require.NoError(t, err)
	assert.True(t, r.Flags.Has(models.FlaggedFlag))
}

func TestMaildirSubscribe(t *testing.T) {
	dir := makeMaildir(t)
	s, err := NewStore("INBOX", dir)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	deliver(t, filepath.Join(dir, "new"), "4000.d.host", "live")

	select {
	case changes := <-ch:
		assert.Len(t, changes.Added, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestMaildirUnavailable(t *testing.T) {
	dir := makeMaildir(t)
	s, err := NewStore("INBOX", dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.RemoveAll(dir))
	_, err = s.Uids(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestContainerListFolders(t *testing.T) {
	dir := makeMaildir(t)
	c, err := NewContainer(filepath.Dir(dir))
	require.NoError(t, err)
	folders, err := c.ListFolders()
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, folders)

	s, err := c.OpenFolder("INBOX")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "INBOX", s.Name())

	_, err = NewContainer(filepath.Join(dir, "cur", "missing"))
	assert.Error(t, err)
}
