package lib

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~rjarry/msglist/models"
)

type mockRawMessage struct {
	uid   models.UID
	body  string
	flags models.Flags
}

func (m *mockRawMessage) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.body)), nil
}
func (m *mockRawMessage) ModelFlags() (models.Flags, error) { return m.flags, nil }
func (m *mockRawMessage) UID() models.UID                   { return m.uid }

const reply = "From: Alice <alice@example.org>\r\n" +
	"To: bob@example.org\r\n" +
	"Subject: Re: lunch\r\n" +
	"Date: Tue, 02 May 2023 10:00:00 +0000\r\n" +
	"Message-ID: <2@example.org>\r\n" +
	"In-Reply-To: <1@example.org>\r\n" +
	"References: <0@example.org> <1@example.org>\r\n" +
	"\r\n" +
	"sure\r\n"

func TestReadRecord(t *testing.T) {
	raw := &mockRawMessage{uid: "42", body: reply, flags: models.SeenFlag}
	r, err := ReadRecord(raw)
	assert.Nil(t, err)
	assert.Equal(t, models.UID("42"), r.Uid)
	assert.Equal(t, "Alice <alice@example.org>", r.From)
	assert.Equal(t, "bob@example.org", r.To)
	assert.Equal(t, "Re: lunch", r.Subject)
	assert.Equal(t, time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC).Unix(), r.DateSent)
	assert.Equal(t, r.DateSent, r.DateReceived)
	assert.Equal(t, "2@example.org", r.MessageId)
	assert.Equal(t, "1@example.org", r.InReplyTo)
	assert.Equal(t, []string{"0@example.org", "1@example.org"}, r.References)
	assert.Equal(t, models.SeenFlag, r.Flags)
	assert.Equal(t, uint32(len(reply)), r.Size)
}

func TestReadRecordBrokenHeaders(t *testing.T) {
	raw := &mockRawMessage{
		uid: "1",
		body: "Subject: no date\r\n" +
			"Date: yesterday-ish\r\n" +
			"Content-Type: multipart/mixed; boundary=x\r\n" +
			"\r\n" +
			"--x--\r\n",
	}
	r, err := ReadRecord(raw)
	assert.Nil(t, err)
	assert.Equal(t, "no date", r.Subject)
	assert.Zero(t, r.DateSent)
	assert.True(t, r.Flags.Has(models.AttachmentFlag))
}

func TestParseDateFromReceived(t *testing.T) {
	raw := &mockRawMessage{
		uid: "1",
		body: "Received: from mx by example.org; Mon, 01 May 2023 08:30:00 +0200\r\n" +
			"Date: \r\n" +
			"\r\n",
	}
	r, err := ReadRecord(raw)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 5, 1, 6, 30, 0, 0, time.UTC).Unix(), r.DateSent)
}
