// Package history defines the line grammar shared by both log sinks and reads
// those lines back as typed events.
//
// A line is
//
//	YYYY-MM-DD HH:MM:SS [tag] message
//
// where the "[tag] " part is present on the detailed sink only. Messages that
// carry data use space separated key=value pairs; values containing spaces or
// quotes are written with strconv.Quote.
package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wifiwatchdog/internal/models"
)

// TimeLayout is the timestamp prefix of every log line, in local time.
const TimeLayout = "2006-01-02 15:04:05"

// Kind classifies a parsed log line.
type Kind int

const (
	KindOther Kind = iota
	KindState
	KindStatus
	KindRecoveryStart
	KindRecovered
)

const (
	statusPrefix    = "status "
	lostPrefix      = "connection lost ("
	recoveredPrefix = "connection recovered after "
)

// Event is one parsed log line.
type Event struct {
	Time    time.Time
	Tag     string
	Kind    Kind
	Message string
	Fields  map[string]string
	// Duration is set for KindRecovered.
	Duration time.Duration
}

// Field returns the value of key or "" when absent.
func (e Event) Field(key string) string {
	return e.Fields[key]
}

// FormatLine renders a full log line. An empty tag omits the bracket part.
func FormatLine(t time.Time, tag, message string) string {
	if tag == "" {
		return t.Format(TimeLayout) + " " + message
	}
	return t.Format(TimeLayout) + " [" + tag + "] " + message
}

// ParseLine parses a single log line. Lines without a valid timestamp are rejected.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < len(TimeLayout) {
		return Event{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, line[:len(TimeLayout)], time.Local)
	if err != nil {
		return Event{}, false
	}
	rest := strings.TrimLeft(line[len(TimeLayout):], " ")

	ev := Event{Time: ts}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "] "); end > 0 {
			ev.Tag = rest[1:end]
			rest = rest[end+2:]
		}
	}
	ev.Message = rest

	switch {
	case strings.HasPrefix(rest, "state="):
		ev.Kind = KindState
		ev.Fields = parseFields(rest)
	case strings.HasPrefix(rest, statusPrefix):
		ev.Kind = KindStatus
		ev.Fields = parseFields(strings.TrimPrefix(rest, statusPrefix))
	case strings.HasPrefix(rest, lostPrefix):
		ev.Kind = KindRecoveryStart
		if end := strings.Index(rest, ")"); end > len(lostPrefix) {
			ev.Fields = map[string]string{"state": rest[len(lostPrefix):end]}
		}
	case strings.HasPrefix(rest, recoveredPrefix):
		secs, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rest, recoveredPrefix), "s"))
		if err != nil || secs < 0 {
			ev.Kind = KindOther
			break
		}
		ev.Kind = KindRecovered
		ev.Duration = time.Duration(secs) * time.Second
	}
	return ev, true
}

// StateMessage renders a state observation. Streak and threshold are omitted
// for healthy observations.
func StateMessage(state models.State, streak, threshold int, detail string) string {
	if state == models.StateOK {
		return fmt.Sprintf("state=%s detail=%s", state, quote(detail))
	}
	return fmt.Sprintf("state=%s streak=%d/%d detail=%s", state, streak, threshold, quote(detail))
}

// StatusMessage renders a diagnostic snapshot.
func StatusMessage(d models.Diagnostics) string {
	return fmt.Sprintf("%sssid=%s bssid=%s signal=%s freq=%s tx=%s ip=%s",
		statusPrefix,
		quote(d.SSID), quote(d.BSSID), quote(d.Signal), quote(d.Frequency), quote(d.TxRate), quote(d.Address))
}

// RecoveryStartMessage renders the event that opens a recovery session.
func RecoveryStartMessage(state models.State) string {
	return fmt.Sprintf("%s%s): starting recovery", lostPrefix, state)
}

// RecoveredMessage renders the event that closes a recovery session.
func RecoveredMessage(d time.Duration) string {
	return fmt.Sprintf("%s%ds", recoveredPrefix, WholeSeconds(d))
}

// WholeSeconds rounds d to the nearest second, clamped at zero.
func WholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}

func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\"=") {
		return strconv.Quote(v)
	}
	return v
}

func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return fields
		}
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return fields
		}
		key := s[:eq]
		s = s[eq+1:]
		if strings.HasPrefix(s, `"`) {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return fields
			}
			value, err := strconv.Unquote(quoted)
			if err != nil {
				return fields
			}
			fields[key] = value
			s = s[len(quoted):]
			continue
		}
		end := strings.IndexByte(s, ' ')
		if end < 0 {
			fields[key] = s
			return fields
		}
		fields[key] = s[:end]
		s = s[end:]
	}
}
