package lockmgr

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	record := newRecord("round-trip")

	assert.Equal(t, os.Getpid(), record.PID)
	assert.Equal(t, "round-trip", record.Resource)
	assert.NotEmpty(t, record.Hostname)
	assert.NotEmpty(t, record.Token)
	assert.WithinDuration(t, time.Now().UTC(), record.Acquired, time.Minute)

	parsed, valid := ParseRecord(record.Encode())
	require.True(t, valid)

	assert.Equal(t, record.PID, parsed.PID)
	assert.Equal(t, record.Resource, parsed.Resource)
	assert.Equal(t, record.Hostname, parsed.Hostname)
	assert.Equal(t, record.Token, parsed.Token)
	// RFC 3339 drops sub-second precision.
	assert.WithinDuration(t, record.Acquired, parsed.Acquired, time.Second)
}

func TestRecordEncodeIsKeyValueLines(t *testing.T) {
	record := Record{
		PID:      42,
		Acquired: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		Resource: "wire",
		Hostname: "workerbox",
		Token:    "tok-1",
	}

	expected := "pid=42\n" +
		"acquired=2026-05-04T12:00:00Z\n" +
		"resource=wire\n" +
		"hostname=workerbox\n" +
		"token=tok-1\n"
	assert.Equal(t, expected, string(record.Encode()))
}

func TestParseRecordTolerance(t *testing.T) {
	// Entirely unusable blobs are rejected.
	for _, blob := range []string{"", "garbage", "no separators here", "=\n=\n"} {
		_, valid := ParseRecord([]byte(blob))
		assert.False(t, valid, "blob %q should not parse", blob)
	}

	// Partially damaged records keep whatever survived.
	parsed, valid := ParseRecord([]byte("pid=not-a-number\nresource=partial\nacquired=also-broken\n"))
	require.True(t, valid)
	assert.Equal(t, "partial", parsed.Resource)
	assert.Zero(t, parsed.PID)
	assert.True(t, parsed.Acquired.IsZero())

	// Unknown keys are ignored without invalidating the record.
	parsed, valid = ParseRecord([]byte("flavour=vanilla\npid=7\n"))
	require.True(t, valid)
	assert.Equal(t, 7, parsed.PID)
}
