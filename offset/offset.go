// Package offset turns a playback-start request into a player seek offset.
//
// A request is absolute seconds, a clock string (H:MM:SS or M:SS), an inning
// label (T<n> or B<n>) or S for the stream start. Labels are resolved through
// a TimestampMap. Live broadcasts seek relative to the live edge; archived
// ones seek from the start of the recording.
package offset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp map labels.
const (
	LabelStart       = "S"
	LabelStartOffset = "SO"
)

var (
	labelRe = regexp.MustCompile(`^[TB]\d+$`)
	clockRe = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{2})$`)
)

// Kind identifies what a Request carries.
type Kind int

const (
	KindNone Kind = iota
	KindSeconds
	KindLabel
)

// Request is a parsed playback-start request. The zero value asks for no seek.
type Request struct {
	Kind    Kind
	Seconds int
	Label   string
}

// None requests no seek.
func None() Request { return Request{} }

// Seconds requests a start n seconds into the broadcast. Zero is a valid
// request and differs from None.
func Seconds(n int) Request { return Request{Kind: KindSeconds, Seconds: n} }

// Label requests the start of an inning label or S.
func Label(l string) Request { return Request{Kind: KindLabel, Label: l} }

// IsNone reports whether no seek was requested.
func (r Request) IsNone() bool { return r.Kind == KindNone }

func (r Request) String() string {
	switch r.Kind {
	case KindSeconds:
		return strconv.Itoa(r.Seconds)
	case KindLabel:
		return r.Label
	}
	return "none"
}

// Parse reads a raw request. An empty string yields None.
func Parse(raw string) (Request, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return None(), nil
	}
	if up := strings.ToUpper(s); up == LabelStart || labelRe.MatchString(up) {
		return Label(up), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return Request{}, &InvalidOffsetError{Value: raw, Reason: "negative"}
		}
		return Seconds(n), nil
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		h := 0
		if m[1] != "" {
			h, _ = strconv.Atoi(m[1])
		}
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		if sec > 59 || (m[1] != "" && min > 59) {
			return Request{}, &InvalidOffsetError{Value: raw, Reason: "malformed clock time"}
		}
		return Seconds(h*3600 + min*60 + sec), nil
	}
	return Request{}, &InvalidOffsetError{Value: raw, Reason: "expected seconds, H:MM:SS, M:SS, S, T<n> or B<n>"}
}

// TimestampMap holds the broadcast start time and label offsets for one
// game's media. Offsets are seconds into the stream.
type TimestampMap struct {
	Start   time.Time
	Offsets map[string]int
}

// Lookup returns the stream-relative seconds for label, measured from the
// SO entry. ok is false when the label is unknown.
func (m *TimestampMap) Lookup(label string) (seconds int, ok bool) {
	if m == nil {
		return 0, false
	}
	base := m.Offsets[LabelStartOffset]
	if label == LabelStart {
		return 0, true
	}
	v, ok := m.Offsets[label]
	if !ok {
		return 0, false
	}
	return v - base, true
}

// Labels returns the map's labels other than SO.
func (m *TimestampMap) Labels() []string {
	if m == nil {
		return nil
	}
	out := []string{LabelStart}
	for k := range m.Offsets {
		if k != LabelStartOffset && k != LabelStart {
			out = append(out, k)
		}
	}
	return out
}

// Result is a calculated seek.
type Result struct {
	set       bool
	offset    time.Duration
	requested int
}

// IsNone reports whether the player should not seek at all.
func (r Result) IsNone() bool { return !r.set }

// Offset returns the signed seek offset.
func (r Result) Offset() time.Duration { return r.offset }

// Flag returns the H:MM:SS seek value. ok is false when no seek applies.
func (r Result) Flag() (value string, ok bool) {
	if !r.set {
		return "", false
	}
	return FormatDuration(r.offset), true
}

// Seconds returns the requested seconds from stream start for use in output
// file names. ok is false when no seek applies.
func (r Result) Seconds() (int, bool) {
	return r.requested, r.set
}

// Calculate resolves req against ts. For a live broadcast the result is the
// time elapsed since the broadcast started minus the requested position, and
// a position that has not aired yet is an *InvalidOffsetError. For an archived
// broadcast it is the requested position itself.
func Calculate(req Request, live bool, ts *TimestampMap, now time.Time) (Result, error) {
	var requested int
	switch req.Kind {
	case KindNone:
		return Result{}, nil
	case KindSeconds:
		requested = req.Seconds
	case KindLabel:
		v, ok := ts.Lookup(req.Label)
		if !ok {
			return Result{}, &InvalidOffsetError{Value: req.Label, Reason: "no such timestamp"}
		}
		requested = v
	default:
		return Result{}, &InvalidOffsetError{Value: req.String(), Reason: "unknown request kind"}
	}

	res := Result{set: true, requested: requested}
	if !live {
		res.offset = time.Duration(requested) * time.Second
		return res, nil
	}

	if ts == nil || ts.Start.IsZero() {
		return Result{}, &InvalidOffsetError{Value: req.String(), Reason: "broadcast start time unknown"}
	}
	elapsed := now.Sub(ts.Start).Truncate(time.Second)
	want := time.Duration(requested) * time.Second
	if want > elapsed {
		return Result{}, &InvalidOffsetError{
			Value:  req.String(),
			Reason: fmt.Sprintf("only %s of the broadcast has aired", FormatDuration(elapsed)),
		}
	}
	res.offset = elapsed - want
	return res, nil
}

// FormatDuration renders d as [-]H:MM:SS, truncating to whole seconds.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%s%d:%02d:%02d", sign, total/3600, (total%3600)/60, total%60)
}

// InvalidOffsetError reports an offset request that cannot be resolved.
type InvalidOffsetError struct {
	Value  string
	Reason string
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset %q: %s", e.Value, e.Reason)
}
