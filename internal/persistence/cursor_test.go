package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &Cursor{StartTime: time.Date(2025, 3, 5, 9, 0, 0, 500, time.UTC), SourceType: activity.SourcePomodoro, ID: 42}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.Equal(t, c, decoded)

	empty, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, empty)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm8tcGlwZXM", "MjAyNXxtYW51YWx8MQ"} {
		_, err := DecodeCursor(token)
		require.Error(t, err, token)
	}
}

func TestPageWalksTimelineOrder(t *testing.T) {
	base := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	acts := []activity.UnifiedActivity{
		{ID: 1, SourceType: activity.SourceManual, StartTime: base},
		{ID: 7, SourceType: activity.SourcePomodoro, StartTime: base},
		{ID: 3, SourceType: activity.SourceAutomatic, StartTime: base},
		{ID: 2, SourceType: activity.SourceManual, StartTime: base.Add(time.Minute)},
	}

	page, next := Page(acts, nil, 2)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	require.Equal(t, int64(7), next.ID)

	page, next = Page(acts, next, 2)
	require.Equal(t, []int64{3, 2}, []int64{page[0].ID, page[1].ID})
	require.Nil(t, next)

	all, next := Page(acts, nil, 0)
	require.Len(t, all, 4)
	require.Nil(t, next)
}
