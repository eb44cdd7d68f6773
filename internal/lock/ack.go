package lock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const ackPrefix = "ACK"

// Ack is one claim entry parsed from the comment log. The wire form is
// `ACK:<role>:<agentId>:<timestampMs>`, a single line appended verbatim as
// a comment body. Fields are colon-delimited and must not contain colons.
type Ack struct {
	Role        string
	AgentID     string
	TimestampMs int64
}

// Time returns the claim timestamp as a time.Time.
func (a Ack) Time() time.Time {
	return time.UnixMilli(a.TimestampMs)
}

func (a Ack) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", ackPrefix, a.Role, a.AgentID, a.TimestampMs)
}

// FormatAck builds the wire token for a claim.
func FormatAck(role, agentID string, ts time.Time) string {
	return Ack{Role: role, AgentID: agentID, TimestampMs: ts.UnixMilli()}.String()
}

// ParseAck parses a comment body as a claim token. It returns false for
// anything malformed: wrong field count, wrong prefix, empty fields, or a
// non-numeric timestamp. Malformed entries are skipped by resolution, never
// treated as errors.
func ParseAck(body string) (Ack, bool) {
	body = strings.TrimSpace(body)
	parts := strings.Split(body, ":")
	if len(parts) != 4 || parts[0] != ackPrefix {
		return Ack{}, false
	}
	role, agentID := parts[1], parts[2]
	if role == "" || agentID == "" {
		return Ack{}, false
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || ts < 0 {
		return Ack{}, false
	}
	return Ack{Role: role, AgentID: agentID, TimestampMs: ts}, true
}

// beats reports whether a wins resolution against b: the smaller timestamp
// wins, ties broken by the lexicographically smaller agentId.
func (a Ack) beats(b Ack) bool {
	if a.TimestampMs != b.TimestampMs {
		return a.TimestampMs < b.TimestampMs
	}
	return a.AgentID < b.AgentID
}
