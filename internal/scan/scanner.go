// Package scan drives the incremental mail-scan cycle: list new UIDs above
// the watermark, fetch and decode each message, match vendor rules, commit
// state, forward new matches.
package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/trackit/internal/decode"
	"github.com/nhle/trackit/internal/match"
	"github.com/nhle/trackit/internal/model"
)

// Gateway is the mailbox operation set a cycle needs. Any error returned
// here aborts the remainder of the cycle; no partial state is committed.
type Gateway interface {
	Connect(ctx context.Context) error
	SearchSince(ctx context.Context, watermark uint32, since time.Time, unseenOnly bool) ([]uint32, error)
	// Fetch returns nil bytes with nil error when the message is gone.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)
	Close() error
}

// Store persists scan state. Failures here are logged but do not abort the
// cycle; the in-memory state stays usable and persistence is retried on the
// next commit.
type Store interface {
	Load(ctx context.Context, accountID string) (model.ScanState, error)
	Save(ctx context.Context, accountID string, state model.ScanState) error
}

// Forwarder receives each newly confirmed match. Failures are logged and do
// not roll back the match's persistence.
type Forwarder interface {
	Forward(ctx context.Context, m model.TrackingMatch) error
}

// Options configures a scanner.
type Options struct {
	// AccountID keys the persisted state for this mailbox configuration.
	AccountID string

	// WindowDays bounds the search to mails from the last N days.
	WindowDays int

	// UnseenOnly restricts scanning to messages without a \Seen flag.
	UnseenOnly bool

	// MaxMatches caps the recent-match cache.
	MaxMatches int
}

// Status is the externally visible state of the scanner.
type Status struct {
	Watermark     uint32
	CachedMatches int

	// MostRecent is the newest cached match, nil when the cache is empty.
	MostRecent *model.TrackingMatch

	LastScan    time.Time
	LastSuccess time.Time
	LastError   string

	// Available is false until the first cycle ever succeeds. After that,
	// failed cycles keep the last-known-good state visible and only set
	// LastError.
	Available bool
}

// Scanner runs scan cycles for one mailbox. At most one cycle is in flight
// at a time; RunCycle serialises callers.
type Scanner struct {
	gw    Gateway
	store Store
	fwd   Forwarder
	rules []model.VendorRule
	opts  Options
	log   *zap.SugaredLogger

	mu     sync.Mutex
	state  model.ScanState
	loaded bool
	dirty  bool
	status Status
}

// New creates a scanner. fwd may be nil to disable forwarding.
func New(gw Gateway, store Store, fwd Forwarder, rules []model.VendorRule, opts Options, log *zap.SugaredLogger) *Scanner {
	return &Scanner{
		gw:    gw,
		store: store,
		fwd:   fwd,
		rules: rules,
		opts:  opts,
		log:   log,
	}
}

// Status returns a snapshot of the scanner's externally visible state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	if len(s.state.Recent) > 0 {
		recent := s.state.Recent[0]
		st.MostRecent = &recent
	}
	st.Watermark = s.state.Watermark
	st.CachedMatches = len(s.state.Recent)
	return st
}

// RunCycle performs one scan end to end. It returns an error only on a
// mailbox failure, in which case nothing was committed and the next
// interval retries. The session is closed on every exit path.
func (s *Scanner) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)
	defer func() {
		if err := s.gw.Close(); err != nil {
			s.log.Warnw("mailbox close failed", "error", err)
		}
	}()

	s.status.LastScan = time.Now()

	if err := s.gw.Connect(ctx); err != nil {
		return s.fail(err)
	}

	since := time.Now().AddDate(0, 0, -s.opts.WindowDays)
	uids, err := s.gw.SearchSince(ctx, s.state.Watermark, since, s.opts.UnseenOnly)
	if err != nil {
		return s.fail(err)
	}
	s.log.Debugw("search complete", "uids", len(uids), "watermark", s.state.Watermark)

	maxUID := s.state.Watermark
	var fresh []model.TrackingMatch
	cycleSeen := make(map[string]struct{})

	for _, uid := range uids {
		raw, err := s.gw.Fetch(ctx, uid)
		if err != nil {
			return s.fail(err)
		}

		// The watermark tracks the maximum UID observed, not the last one
		// successfully handled, so a single bad message cannot stall
		// progress past it.
		if uid > maxUID {
			maxUID = uid
		}

		if raw == nil {
			s.log.Debugw("message gone, skipping", "uid", uid)
			continue
		}

		msg, err := decode.Parse(raw)
		if err != nil {
			s.log.Warnw("malformed message skipped; watermark advances past it",
				"uid", uid, "error", err)
			continue
		}

		for _, m := range match.Evaluate(msg, s.rules) {
			if s.state.Seen(m.TrackingID) {
				continue
			}
			if _, dup := cycleSeen[m.TrackingID]; dup {
				continue
			}
			cycleSeen[m.TrackingID] = struct{}{}
			m.EmailUID = uid
			fresh = append(fresh, m)
			s.log.Infow("tracking number found",
				"supplier", m.Supplier, "tracking_id", m.TrackingID, "uid", uid)
		}
	}

	s.commit(ctx, maxUID, fresh)

	for _, m := range fresh {
		if s.fwd == nil {
			continue
		}
		if err := s.fwd.Forward(ctx, m); err != nil {
			s.log.Errorw("forwarding match failed",
				"supplier", m.Supplier, "tracking_id", m.TrackingID, "error", err)
		}
	}

	now := time.Now()
	s.status.LastSuccess = now
	s.status.LastError = ""
	s.status.Available = true
	s.log.Infow("scan cycle complete",
		"scanned", len(uids), "new_matches", len(fresh), "watermark", s.state.Watermark)

	return nil
}

// ensureLoaded loads the persisted state once. A load failure is logged and
// the cycle proceeds from the default empty state.
func (s *Scanner) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	st, err := s.store.Load(ctx, s.opts.AccountID)
	if err != nil {
		s.log.Errorw("loading scan state failed, starting empty", "error", err)
		st = model.NewScanState()
	}
	s.state = st
	s.loaded = true
}

// commit applies the cycle's results to the in-memory state and persists
// it. Nothing is written when the cycle observed no new maximum UID, no new
// matches, and no earlier save is still pending.
func (s *Scanner) commit(ctx context.Context, maxUID uint32, fresh []model.TrackingMatch) {
	changed := maxUID > s.state.Watermark || len(fresh) > 0
	if changed {
		s.state.Advance(maxUID)
		s.state.AddMatches(fresh, s.opts.MaxMatches)
		s.state.LastScan = time.Now()
		s.dirty = true
	}

	if !s.dirty {
		return
	}

	if err := s.store.Save(ctx, s.opts.AccountID, s.state); err != nil {
		s.log.Errorw("persisting scan state failed, retrying next cycle", "error", err)
		return
	}
	s.dirty = false
}

// fail records a cycle-aborting error in the status.
func (s *Scanner) fail(err error) error {
	s.status.LastError = err.Error()
	s.log.Errorw("scan cycle aborted", "error", err)
	return err
}
