package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/storage"
)

type stubEvent struct {
	payload *types.Event
}

func (s stubEvent) EventType() string {
	if s.payload == nil {
		return ""
	}
	return s.payload.Type
}

func (s stubEvent) Event() *types.Event { return s.payload }

func TestRecorderAssignsSequences(t *testing.T) {
	db := storage.NewMemDB()
	recorder, err := NewRecorder(db, nil)
	require.NoError(t, err)

	recorder.Emit(stubEvent{payload: &types.Event{Type: "escrow.created", Attributes: map[string]string{"id": "1"}}})
	recorder.Emit(stubEvent{payload: &types.Event{Type: "escrow.funded", Attributes: map[string]string{"id": "1"}}})

	records, err := recorder.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].Sequence)
	require.Equal(t, "escrow.created", records[0].Type)
	require.Equal(t, uint64(2), records[1].Sequence)
	require.Equal(t, "escrow.funded", records[1].Type)
	require.Equal(t, "1", records[1].Attributes["id"])
}

func TestRecorderResumesSequenceAcrossRestart(t *testing.T) {
	db := storage.NewMemDB()
	first, err := NewRecorder(db, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		first.Emit(stubEvent{payload: &types.Event{Type: "escrow.created"}})
	}

	second, err := NewRecorder(db, nil)
	require.NoError(t, err)
	second.Emit(stubEvent{payload: &types.Event{Type: "escrow.refunded"}})

	records, err := second.List(0)
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, uint64(4), records[3].Sequence)
	require.Equal(t, "escrow.refunded", records[3].Type)
}

func TestRecorderListLimit(t *testing.T) {
	db := storage.NewMemDB()
	recorder, err := NewRecorder(db, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		recorder.Emit(stubEvent{payload: &types.Event{Type: "escrow.created"}})
	}
	records, err := recorder.List(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].Sequence)
	require.Equal(t, uint64(2), records[1].Sequence)
}

type failingDB struct {
	*storage.MemDB
}

func (f failingDB) Put(key, value []byte) error { return errors.New("disk full") }

func TestRecorderReportsSinkErrors(t *testing.T) {
	var sinkErr error
	recorder, err := NewRecorder(failingDB{storage.NewMemDB()}, func(err error) { sinkErr = err })
	require.NoError(t, err)

	recorder.Emit(stubEvent{payload: &types.Event{Type: "escrow.created"}})
	require.Error(t, sinkErr)

	// A failed write must not consume the sequence number.
	records, err := recorder.List(0)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRecorderIgnoresEmptyEvents(t *testing.T) {
	db := storage.NewMemDB()
	recorder, err := NewRecorder(db, nil)
	require.NoError(t, err)
	recorder.Emit(nil)
	recorder.Emit(stubEvent{payload: nil})
	records, err := recorder.List(0)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSequenceOrderSurvivesWideRange(t *testing.T) {
	// Zero-padded keys keep lexicographic order equal to numeric order even
	// when the sequence crosses digit boundaries.
	db := storage.NewMemDB()
	recorder, err := NewRecorder(db, nil)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		recorder.Emit(stubEvent{payload: &types.Event{Type: "escrow.created"}})
	}
	records, err := recorder.List(0)
	require.NoError(t, err)
	require.Len(t, records, 12)
	for i, rec := range records {
		require.Equal(t, uint64(i+1), rec.Sequence)
	}
}
