// Package decode turns raw RFC 5322 messages into the header fields and
// body text the pattern matcher works on.
package decode

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

func init() {
	// Handle non-UTF-8 charsets in headers and bodies instead of erroring.
	message.CharsetReader = charset.Reader
}

// Message is the decoded form of one mail. Both body fields may be empty.
type Message struct {
	// Sender is the address of the first From entry, e.g. "noreply@dhl.de".
	Sender string

	Subject   string
	MessageID string
	Date      time.Time

	// PlainText is the first text/plain body part.
	PlainText string

	// HTMLText is the first text/html body part, undecoded HTML.
	HTMLText string
}

// Parse decodes a raw message. Header values are decoded best-effort:
// undecodable bytes are replaced rather than failing. An error is returned
// only when the message structure itself cannot be read.
func Parse(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	readHeader(mr.Header, msg)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was decoded so far; a broken trailing part
			// should not discard the parts already read.
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		// First part of each content type wins; later duplicates are
		// ignored.
		switch {
		case strings.HasPrefix(contentType, "text/plain") && msg.PlainText == "":
			msg.PlainText = string(body)
		case strings.HasPrefix(contentType, "text/html") && msg.HTMLText == "":
			msg.HTMLText = string(body)
		}
	}

	return msg, nil
}

// readHeader fills the envelope fields from a mail header, tolerating
// malformed values.
func readHeader(h mail.Header, msg *Message) {
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}

	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.Sender = from[0].Address
	} else {
		msg.Sender = strings.TrimSpace(h.Get("From"))
	}
}
