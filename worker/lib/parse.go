package lib

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/miolini/datacounter"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/models"
)

// RFC 1123Z regexp
var dateRe = regexp.MustCompile(`(((Mon|Tue|Wed|Thu|Fri|Sat|Sun))[,]?\s[0-9]{1,2})\s` +
	`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s` +
	`([0-9]{4})\s([0-9]{2}):([0-9]{2})(:([0-9]{2}))?\s([\+|\-][0-9]{4})\s?`)

// RawMessage is an interface that describes a raw message
type RawMessage interface {
	NewReader() (io.ReadCloser, error)
	ModelFlags() (models.Flags, error)
	UID() models.UID
}

// ReadRecord builds the listing record of a raw message. Header fields which
// cannot be parsed are left empty and logged; only an unreadable message is
// an error.
func ReadRecord(raw RawMessage) (*models.Record, error) {
	r, err := raw.NewReader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	counter := datacounter.NewReaderCounter(r)
	msg, err := message.Read(counter)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("could not read message: %w", err)
	}
	record, err := recordFromHeader(raw.UID(), &mail.Header{Header: msg.Header})
	if err != nil {
		log.Debugf("message %s: %v", raw.UID(), err)
	}
	if _, err := io.Copy(io.Discard, msg.Body); err != nil {
		return nil, fmt.Errorf("could not read message body: %w", err)
	}
	record.Size = uint32(counter.Count())
	flags, err := raw.ModelFlags()
	if err != nil {
		return nil, err
	}
	record.Flags |= flags
	return record, nil
}

// recordFromHeader returns a record even on error, with the fields that
// could be read.
func recordFromHeader(uid models.UID, h *mail.Header) (*models.Record, error) {
	var errs []error
	record := &models.Record{Uid: uid}

	if date, err := parseDate(h); err != nil {
		errs = append(errs, fmt.Errorf("could not parse date header: %w", err))
	} else {
		record.DateSent = date.Unix()
	}
	if received, err := parseReceived(h); err == nil {
		record.DateReceived = received.Unix()
	} else {
		record.DateReceived = record.DateSent
	}
	if subject, err := h.Subject(); err != nil {
		errs = append(errs, fmt.Errorf("could not read subject: %w", err))
	} else {
		record.Subject = subject
	}
	record.From = formatAddressList(h, "from")
	record.To = formatAddressList(h, "to")

	if id, err := h.MessageID(); err != nil {
		errs = append(errs, fmt.Errorf("could not read message id: %w", err))
	} else {
		record.MessageId = id
	}
	if irt, err := h.MsgIDList("in-reply-to"); err == nil && len(irt) > 0 {
		record.InReplyTo = irt[0]
	}
	if refs, err := h.MsgIDList("references"); err != nil {
		errs = append(errs, fmt.Errorf("could not read references: %w", err))
	} else {
		record.References = refs
	}
	if mediaType, _, err := h.ContentType(); err == nil &&
		strings.HasPrefix(mediaType, "multipart/mixed") {
		record.Flags |= models.AttachmentFlag
	}
	return record, errors.Join(errs...)
}

// parseDate extends the built-in date parser with additional layouts which are
// non-conforming but appear in the wild.
func parseDate(h *mail.Header) (time.Time, error) {
	t, parseErr := h.Date()
	if parseErr == nil {
		return t, nil
	}
	text, err := h.Text("date")
	if err != nil {
		return time.Time{}, errors.New("no date header")
	}
	// sometimes, no error occurs but the date is empty. In this case, guess time from received header field
	if text == "" {
		return parseReceived(h)
	}
	layouts := []string{
		// X-Mailer: EarthLink Zoo Mail 1.0
		"Mon, _2 Jan 2006 15:04:05 -0700 (GMT-07:00)",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", text)
}

func parseReceived(h *mail.Header) (time.Time, error) {
	guess, err := h.Text("received")
	if err != nil || guess == "" {
		return time.Time{}, errors.New("no received header")
	}
	return time.Parse(time.RFC1123Z, strings.TrimSpace(dateRe.FindString(guess)))
}

func formatAddressList(h *mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil {
		if hdr, err := h.Text(key); err == nil {
			return hdr
		}
		return ""
	}
	formatted := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Name != "" {
			formatted = append(formatted, fmt.Sprintf("%s <%s>", addr.Name, addr.Address))
		} else {
			formatted = append(formatted, addr.Address)
		}
	}
	return strings.Join(formatted, ", ")
}
