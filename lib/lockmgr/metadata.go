package lockmgr

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Metadata Record
// --------------------------------------------------------------------------

// Record is the advisory metadata written into a claimed lock. It identifies
// the holder for diagnostics and for the opt-in CheckedRelease guard; it is
// never consulted for the mutual-exclusion decision itself.
type Record struct {
	PID      int       // process id of the holder
	Acquired time.Time // acquisition time, UTC
	Resource string    // resource the lock protects
	Hostname string    // host the holder runs on
	Token    string    // per-acquisition holder token
}

// newRecord creates the metadata record for a fresh acquisition of resource.
func newRecord(resource string) Record {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Record{
		PID:      os.Getpid(),
		Acquired: time.Now().UTC(),
		Resource: resource,
		Hostname: hostname,
		Token:    uuid.NewString(),
	}
}

// Encode serializes the record as key=value lines.
func (r Record) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", r.PID)
	fmt.Fprintf(&b, "acquired=%s\n", r.Acquired.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "resource=%s\n", r.Resource)
	fmt.Fprintf(&b, "hostname=%s\n", r.Hostname)
	fmt.Fprintf(&b, "token=%s\n", r.Token)
	return []byte(b.String())
}

// ParseRecord decodes a key=value metadata blob. Unknown keys are ignored and
// malformed lines are skipped; the record is rejected only if no known key
// could be parsed at all, so a truncated record still yields whatever
// information survived.
func ParseRecord(data []byte) (Record, bool) {
	var (
		r     Record
		valid bool
	)
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			r.PID = pid
		case "acquired":
			acquired, err := time.Parse(time.RFC3339, value)
			if err != nil {
				continue
			}
			r.Acquired = acquired
		case "resource":
			r.Resource = value
		case "hostname":
			r.Hostname = value
		case "token":
			r.Token = value
		default:
			continue
		}
		valid = true
	}
	return r, valid
}
