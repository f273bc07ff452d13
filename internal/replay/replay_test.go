package replay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/internal/domain"
)

func entries(pairs ...any) []domain.LogEntry {
	out := make([]domain.LogEntry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.LogEntry{Message: pairs[i].(string), ArrivedAt: int64(pairs[i+1].(int))})
	}
	return out
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		entries      []domain.LogEntry
		disconnected int64
		reconnected  int64
		threshold    int64
		want         []string
		wantOK       bool
	}{
		{
			name:         "empty log returns sentinel",
			entries:      nil,
			disconnected: 0,
			reconnected:  3,
			threshold:    5,
			wantOK:       false,
		},
		{
			name:         "empty log returns sentinel even with zero threshold",
			entries:      []domain.LogEntry{},
			disconnected: 0,
			reconnected:  100,
			threshold:    0,
			wantOK:       false,
		},
		{
			name:         "short outage replays everything",
			entries:      entries("m1", 1, "m2", 2),
			disconnected: 0,
			reconnected:  3,
			threshold:    5,
			want:         []string{"m1", "m2"},
			wantOK:       true,
		},
		{
			name:         "outage equal to threshold replays everything",
			entries:      entries("m1", 1, "m2", 4),
			disconnected: 0,
			reconnected:  5,
			threshold:    5,
			want:         []string{"m1", "m2"},
			wantOK:       true,
		},
		{
			name:         "short outage ignores entry timestamps",
			entries:      entries("ancient", -1000, "m2", 2),
			disconnected: 0,
			reconnected:  3,
			threshold:    5,
			want:         []string{"ancient", "m2"},
			wantOK:       true,
		},
		{
			name:         "long outage skips stale prefix",
			entries:      entries("m1", 1, "m2", 7),
			disconnected: 0,
			reconnected:  10,
			threshold:    5,
			want:         []string{"m2"},
			wantOK:       true,
		},
		{
			name:         "long outage with every entry stale returns sentinel",
			entries:      entries("m1", 1),
			disconnected: 0,
			reconnected:  20,
			threshold:    5,
			wantOK:       false,
		},
		{
			name:         "age equal to threshold qualifies",
			entries:      entries("m1", 1, "m2", 5),
			disconnected: 0,
			reconnected:  10,
			threshold:    5,
			want:         []string{"m2"},
			wantOK:       true,
		},
		{
			name:         "tail after first qualifying entry is not re-checked",
			entries:      entries("old", 1, "fresh", 8, "stale-again", 2, "last", 9),
			disconnected: 0,
			reconnected:  10,
			threshold:    5,
			want:         []string{"fresh", "stale-again", "last"},
			wantOK:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(tt.entries, tt.disconnected, tt.reconnected, tt.threshold)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_PreservesArrivalOrder(t *testing.T) {
	log := entries("a", 1, "b", 1, "c", 1, "d", 2)

	got, ok := Select(log, 0, 2, 5)

	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestPayload(t *testing.T) {
	require.Equal(t, domain.ReplaySentinel, Payload(nil, false))
	require.Equal(t, "m1\tm2", Payload([]string{"m1", "m2"}, true))
	require.Equal(t, "only", Payload([]string{"only"}, true))
}

func TestSplit(t *testing.T) {
	msgs, ok := Split(domain.ReplaySentinel)
	require.False(t, ok)
	require.Nil(t, msgs)

	msgs, ok = Split("m1\tm2")
	require.True(t, ok)
	require.Equal(t, []string{"m1", "m2"}, msgs)

	msgs, ok = Split("m1\tm2\t")
	require.True(t, ok)
	require.Equal(t, []string{"m1", "m2"}, msgs)
}
