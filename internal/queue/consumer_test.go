package queue

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    json "github.com/goccy/go-json"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestHandleMessageAppends(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    ev := ActivityRecordedEvent{
        EntryID: 9, UserID: 3, Username: "alice", House: "Blue", Kind: "climb",
        Quantity: 5, Multiplier: 2, Points: 100, Source: "manual", PeakName: "Morning Peak",
        RecordedAt: time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC),
    }
    body, err := json.Marshal(ev)
    require.NoError(t, err)

    require.NoError(t, HandleMessage(dir, body))
    require.NoError(t, HandleMessage(dir, body))

    raw, err := os.ReadFile(filepath.Join(dir, ActivityLogFile))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    require.Len(t, lines, 2)
    assert.Equal(t, `[2024-03-04T01:00:00Z] Activity recorded | entry_id=9 | user_id=3 | user="alice" | house="Blue" | kind=climb | quantity=5 | multiplier=2x (Morning Peak) | points=100 | source=manual`, lines[0])
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
    dir := t.TempDir()
    require.Error(t, HandleMessage(dir, []byte("{not json")))
    require.Error(t, HandleMessage(dir, []byte(`{"kind":"climb"}`)))
    _, err := os.Stat(filepath.Join(dir, ActivityLogFile))
    assert.True(t, os.IsNotExist(err))
}

func TestFormatLineOffPeak(t *testing.T) {
    line := FormatLine(ActivityRecordedEvent{EntryID: 1, UserID: 1, Kind: "steps", Multiplier: 1})
    assert.Contains(t, line, "multiplier=1x (off-peak)")
}
