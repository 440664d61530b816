package timeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tOgg1/chatsync/internal/models"
)

var referenceNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func TestSeparatorLabels(t *testing.T) {
	tests := []struct {
		at     time.Time
		bucket Bucket
		label  string
	}{
		{at: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), bucket: BucketToday, label: "Today"},
		{at: time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC), bucket: BucketYesterday, label: "Yesterday"},
		{at: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), bucket: BucketThisWeek, label: "Friday"},
		{at: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), bucket: BucketThisWeek, label: "Wednesday"},
		{at: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), bucket: BucketOlder, label: "02/01/2024"},
		{at: time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC), bucket: BucketOlder, label: "01/12/2023"},
		{at: time.Time{}, bucket: BucketInvalid, label: ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			require.Equal(t, tt.bucket, Classify(tt.at, referenceNow, time.UTC))
			require.Equal(t, tt.label, SeparatorLabel(tt.at, referenceNow, time.UTC))
		})
	}
}

func TestTimeLabel(t *testing.T) {
	require.Equal(t, "09:00", TimeLabel(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), referenceNow, time.UTC))
	require.Equal(t, "Yesterday", TimeLabel(time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC), referenceNow, time.UTC))
	require.Equal(t, "", TimeLabel(time.Time{}, referenceNow, time.UTC))
}

func TestClassifyUsesCalendarDaysNotElapsedHours(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 30, 0, 0, time.UTC)
	// One hour earlier is already yesterday.
	require.Equal(t, BucketYesterday, Classify(now.Add(-time.Hour), now, time.UTC))

	// The same instants bucket differently in another zone.
	tokyo := time.FixedZone("JST", 9*3600)
	require.Equal(t, BucketToday, Classify(now.Add(-time.Hour), now, tokyo))
}

func msg(id string, at time.Time) models.Message {
	m := models.Message{ID: id}
	if !at.IsZero() {
		m.Timestamp = fn.Some(at)
	}
	return m
}

func shape(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Kind == EntrySeparator {
			out = append(out, "--"+e.Label)
			continue
		}
		out = append(out, e.Message.ID+"@"+e.Label)
	}
	return out
}

func TestInsertSeparators(t *testing.T) {
	entries := MessageEntries([]models.Message{
		msg("a", time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)),
		msg("b", time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC)),
		msg("c", time.Time{}),
		msg("d", time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC)),
		msg("e", time.Date(2024, 1, 10, 9, 15, 0, 0, time.UTC)),
	})

	got := InsertSeparators(entries, referenceNow, time.UTC)
	want := []string{
		"--Monday", "a@Monday", "b@Monday", "c@",
		"--Yesterday", "d@Yesterday",
		"--Today", "e@09:15",
	}
	if diff := cmp.Diff(want, shape(got)); diff != "" {
		t.Fatalf("unexpected timeline (-want +got):\n%s", diff)
	}
}

func TestInsertSeparatorsUndatedFirstMessage(t *testing.T) {
	entries := MessageEntries([]models.Message{
		msg("a", time.Time{}),
		msg("b", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
	})
	got := InsertSeparators(entries, referenceNow, time.UTC)
	require.Equal(t, []string{"--", "a@", "--Today", "b@09:00"}, shape(got))
	require.Equal(t, got, InsertSeparators(got, referenceNow, time.UTC))

	undated := InsertSeparators(MessageEntries([]models.Message{msg("x", time.Time{}), msg("y", time.Time{})}), referenceNow, time.UTC)
	require.Equal(t, []string{"--", "x@", "y@"}, shape(undated))
}

func TestInsertSeparatorsIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		msgs := make([]models.Message, 0, n)
		for i := 0; i < n; i++ {
			var at time.Time
			if rapid.Bool().Draw(t, "dated") {
				offset := rapid.IntRange(0, 20*24).Draw(t, "hoursAgo")
				at = referenceNow.Add(-time.Duration(offset) * time.Hour)
			}
			msgs = append(msgs, msg(string(rune('a'+i%26)), at))
		}

		once := InsertSeparators(MessageEntries(msgs), referenceNow, time.UTC)
		twice := InsertSeparators(once, referenceNow, time.UTC)
		if diff := cmp.Diff(shape(once), shape(twice)); diff != "" {
			t.Fatalf("separators not stable (-once +twice):\n%s", diff)
		}

		messages := 0
		for _, e := range twice {
			if e.Kind == EntryMessage {
				if e.Message.ID != msgs[messages].ID {
					t.Fatalf("message order changed at %d", messages)
				}
				messages++
			}
		}
		if messages != n {
			t.Fatalf("expected %d messages, got %d", n, messages)
		}
	})
}
