package model

import "time"

// ScanState is the durable progress of one mailbox configuration: the UID
// watermark, the set of tracking ids already reported, and the bounded
// most-recent-first match cache. Owned by the scan orchestrator; mutated
// only at the end of a successful cycle.
type ScanState struct {
	// Watermark is the highest UID confirmed processed. 0 means scan from
	// the beginning.
	Watermark uint32

	// SeenIDs holds every tracking id ever reported, so a resent mail with
	// a new UID does not produce a duplicate match.
	SeenIDs map[string]struct{}

	// Recent is the bounded match cache, newest first.
	Recent []TrackingMatch

	// LastScan is when the state was last committed.
	LastScan time.Time
}

// NewScanState returns the default empty state.
func NewScanState() ScanState {
	return ScanState{SeenIDs: make(map[string]struct{})}
}

// Seen reports whether a tracking id has already been reported.
func (s *ScanState) Seen(trackingID string) bool {
	_, ok := s.SeenIDs[trackingID]
	return ok
}

// Advance raises the watermark to uid. The watermark never moves backwards.
func (s *ScanState) Advance(uid uint32) {
	if uid > s.Watermark {
		s.Watermark = uid
	}
}

// AddMatches prepends new matches to the cache, records their tracking ids
// as seen, and truncates the cache to max entries. Matches beyond the cap
// are dropped, not archived.
func (s *ScanState) AddMatches(matches []TrackingMatch, max int) {
	if len(matches) == 0 {
		return
	}

	if s.SeenIDs == nil {
		s.SeenIDs = make(map[string]struct{})
	}
	for _, m := range matches {
		s.SeenIDs[m.TrackingID] = struct{}{}
	}

	merged := make([]TrackingMatch, 0, len(matches)+len(s.Recent))
	merged = append(merged, matches...)
	merged = append(merged, s.Recent...)
	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	s.Recent = merged
}
