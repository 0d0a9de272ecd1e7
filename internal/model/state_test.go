package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanState_AdvanceIsMonotonic(t *testing.T) {
	st := NewScanState()

	st.Advance(10)
	assert.Equal(t, uint32(10), st.Watermark)

	st.Advance(5)
	assert.Equal(t, uint32(10), st.Watermark, "watermark never moves backwards")

	st.Advance(12)
	assert.Equal(t, uint32(12), st.Watermark)
}

func TestScanState_AddMatchesPrependsAndCaps(t *testing.T) {
	st := NewScanState()

	st.AddMatches([]TrackingMatch{
		{Supplier: "DHL", TrackingID: "A"},
		{Supplier: "DHL", TrackingID: "B"},
	}, 3)
	st.AddMatches([]TrackingMatch{
		{Supplier: "UPS", TrackingID: "C"},
		{Supplier: "UPS", TrackingID: "D"},
	}, 3)

	require.Len(t, st.Recent, 3)
	assert.Equal(t, "C", st.Recent[0].TrackingID, "newest first")
	assert.Equal(t, "D", st.Recent[1].TrackingID)
	assert.Equal(t, "A", st.Recent[2].TrackingID)

	for _, id := range []string{"A", "B", "C", "D"} {
		assert.True(t, st.Seen(id), "evicted matches stay in the seen set")
	}
}

func TestScanState_AddMatchesNoOpOnEmpty(t *testing.T) {
	st := NewScanState()
	st.AddMatches(nil, 5)
	assert.Empty(t, st.Recent)
	assert.Empty(t, st.SeenIDs)
}

func TestScanState_SeenOnNilMap(t *testing.T) {
	var st ScanState
	assert.False(t, st.Seen("X"))

	st.AddMatches([]TrackingMatch{{TrackingID: "X"}}, 1)
	assert.True(t, st.Seen("X"))
}
