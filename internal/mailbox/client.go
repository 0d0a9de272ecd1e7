// Package mailbox is a thin gateway over an IMAP session: connect, search
// above a UID watermark, fetch one message, close. It holds a single
// authenticated session; it is not safe for concurrent use.
package mailbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// SecuritySSL and SecurityStartTLS select the transport mode.
const (
	SecuritySSL      = "ssl"
	SecurityStartTLS = "starttls"
)

// Config holds the connection settings for one mailbox.
type Config struct {
	Host     string
	Port     int
	Security string
	Username string
	Password string
	Mailbox  string
}

// Gateway wraps go-imap v2 for connecting to and querying one IMAP mailbox.
type Gateway struct {
	cfg    Config
	client *imapclient.Client
}

// New creates a gateway for the given mailbox configuration.
func New(cfg Config) *Gateway {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Gateway{cfg: cfg}
}

// Connect establishes the session: dial, login, select. Calling Connect on
// an already connected gateway is a no-op.
func (g *Gateway) Connect(_ context.Context) error {
	if g.client != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Host, g.cfg.Port)

	var client *imapclient.Client
	var err error
	if g.cfg.Security == SecurityStartTLS {
		client, err = imapclient.DialStartTLS(addr, nil)
	} else {
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return &Error{Op: "connect", Err: fmt.Errorf("dialing %s: %w", addr, err)}
	}

	if err := client.Login(g.cfg.Username, g.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &Error{Op: "connect", Err: fmt.Errorf("authenticating %s: %w", g.cfg.Username, err)}
	}

	if _, err := client.Select(g.cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &Error{Op: "connect", Err: fmt.Errorf("selecting %s: %w", g.cfg.Mailbox, err)}
	}

	g.client = client
	return nil
}

// SearchSince returns the UIDs above watermark received on or after since,
// in ascending order. With unseenOnly set, messages carrying a \Seen flag
// are excluded.
func (g *Gateway) SearchSince(ctx context.Context, watermark uint32, since time.Time, unseenOnly bool) ([]uint32, error) {
	if err := g.Connect(ctx); err != nil {
		return nil, err
	}

	var uidRange imap.UIDSet
	uidRange.AddRange(imap.UID(watermark+1), 0) // 0 = "*"

	criteria := &imap.SearchCriteria{
		Since: since,
		UID:   []imap.UIDSet{uidRange},
	}
	if unseenOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	data, err := g.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}

	var uids []uint32
	for _, uid := range data.AllUIDs() {
		// Servers interpret "N:*" as including the highest UID even when
		// it is below N; filter those out.
		if uint32(uid) > watermark {
			uids = append(uids, uint32(uid))
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, nil
}

// Fetch retrieves one full raw message by UID. A nil result with nil error
// means the server no longer has the message.
func (g *Gateway) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := g.Connect(ctx); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := g.client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, &Error{Op: "fetch", Err: err}
		}
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}

	return buf.FindBodySection(bodySection), nil
}

// Close logs out and releases the session. Safe to call repeatedly or
// without a prior Connect.
func (g *Gateway) Close() error {
	if g.client == nil {
		return nil
	}

	client := g.client
	g.client = nil
	if err := client.Logout().Wait(); err != nil {
		return &Error{Op: "logout", Err: err}
	}

	return nil
}
