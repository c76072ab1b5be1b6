package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with fresh flag values and an isolated
// configuration file.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runStreams(t, args...)
	return stdout, err
}

func runStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	ruleText, dtstartText, tzName, verbose, jsonOutput = "", "", "", false, false
	allLimit, inclusive = 0, false
	icsFrom, icsTo, icsUID, icsExport = "", "", "", ""
	xcalDecode = ""

	if !hasFlag(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "none.toml"))
	}

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

const weekly = "DTSTART:19970902T090000Z\nRRULE:FREQ=WEEKLY;COUNT=4;BYDAY=TU,TH"

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := run(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "rrule version test-version-1.0.0")
}

func TestOutputGoesToStdout(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"version", []string{"version"}},
		{"all", []string{"all", "--rule", weekly}},
		{"count", []string{"count", "--rule", weekly}},
		{"after", []string{"after", "1997-09-04T09:00:00Z", "--rule", weekly}},
		{"describe", []string{"describe", "--rule", weekly}},
		{"xcal", []string{"xcal", "--rule", weekly}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := runStreams(t, tt.args...)
			require.NoError(t, err)
			assert.NotEmpty(t, stdout)
			assert.Empty(t, stderr)
		})
	}
}

func TestAllCmd(t *testing.T) {
	out, err := run(t, "all", "--rule", weekly)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"1997-09-02T09:00:00Z",
		"1997-09-04T09:00:00Z",
		"1997-09-09T09:00:00Z",
		"1997-09-11T09:00:00Z",
	}, lines(out))
}

func TestAllCmd_Limits(t *testing.T) {
	out, err := run(t, "all", "-r", "DTSTART:20240101T000000Z\nRRULE:FREQ=DAILY", "--limit", "3")
	require.NoError(t, err)
	assert.Len(t, lines(out), 3)

	// Unbounded rules fall back to the configured limit
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("limit = 5\n"), 0600))
	out, err = run(t, "all", "-r", "DTSTART:20240101T000000Z\nRRULE:FREQ=DAILY", "--config", path)
	require.NoError(t, err)
	assert.Len(t, lines(out), 5)
}

func TestAllCmd_JSON(t *testing.T) {
	out, err := run(t, "all", "--rule", weekly, "--json")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 4)
	assert.Equal(t, "1997-09-02T09:00:00Z", got[0])
}

func TestAllCmd_Stdin(t *testing.T) {
	rootCmd.SetIn(strings.NewReader(weekly))
	out, err := run(t, "all", "--rule", "-")

	require.NoError(t, err)
	assert.Len(t, lines(out), 4)
}

func TestAllCmd_DtstartAndZone(t *testing.T) {
	out, err := run(t, "all", "--rule", "FREQ=DAILY;COUNT=2", "--dtstart", "20240310T090000", "--tz", "America/New_York")

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10T09:00:00-04:00", "2024-03-11T09:00:00-04:00"}, lines(out))
}

func TestCountCmd(t *testing.T) {
	out, err := run(t, "count", "--rule", weekly)
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(out))

	_, err = run(t, "count", "--rule", "FREQ=DAILY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbounded")
}

func TestBetweenCmd(t *testing.T) {
	out, err := run(t, "between", "1997-09-04T09:00:00Z", "1997-09-11T09:00:00Z", "--rule", weekly)
	require.NoError(t, err)
	assert.Equal(t, []string{"1997-09-09T09:00:00Z"}, lines(out))

	out, err = run(t, "between", "19970904T090000Z", "19970911T090000Z", "--inc", "--rule", weekly)
	require.NoError(t, err)
	assert.Len(t, lines(out), 3)
}

func TestBetweenCmd_RequiresTwoArgs(t *testing.T) {
	_, err := run(t, "between", "1997-09-04T09:00:00Z", "--rule", weekly)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestAfterAndBefore(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"after", []string{"after", "1997-09-04T09:00:00Z"}, "1997-09-09T09:00:00Z"},
		{"after inclusive", []string{"after", "1997-09-04T09:00:00Z", "--inc"}, "1997-09-04T09:00:00Z"},
		{"before", []string{"before", "1997-09-04T09:00:00Z"}, "1997-09-02T09:00:00Z"},
		{"before inclusive", []string{"before", "1997-09-04T09:00:00Z", "--inc"}, "1997-09-04T09:00:00Z"},
		{"none after", []string{"after", "1998-01-01"}, ""},
		{"none before", []string{"before", "1997-09-02T09:00:00Z"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append(tt.args, "--rule", weekly)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestAfterCmd_JSONNone(t *testing.T) {
	out, err := run(t, "after", "1998-01-01", "--rule", weekly, "--json")

	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestDescribeCmd(t *testing.T) {
	out, err := run(t, "describe", "--rule", weekly)
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 3)
	assert.Equal(t, "every week on Tuesday and Thursday for 4 times", got[0])
	assert.Equal(t, "DTSTART:19970902T090000Z", got[1])
	assert.Equal(t, "RRULE:FREQ=WEEKLY;COUNT=4;BYDAY=TU,TH", got[2])

	out, err = run(t, "describe", "--json", "--rule", weekly+"\nEXRULE:FREQ=WEEKLY;COUNT=1;BYDAY=TH")
	require.NoError(t, err)
	var d description
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Len(t, d.Text, 2)
	assert.True(t, strings.HasPrefix(d.Text[1], "except "))
}

func TestRuleErrors(t *testing.T) {
	_, err := run(t, "all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule given")

	_, err = run(t, "all", "--rule", "FREQ=WEEKLY;FOO=1")
	require.Error(t, err)

	_, err = run(t, "all", "--rule", weekly, "--tz", "Mars/Olympus")
	require.Error(t, err)

	_, err = run(t, "all", "--rule", "FREQ=DAILY", "--dtstart", "someday")
	require.Error(t, err)
}

func TestXCalCmd(t *testing.T) {
	out, err := run(t, "xcal", "--rule", weekly)
	require.NoError(t, err)
	assert.Contains(t, out, "<freq>WEEKLY</freq>")
	assert.Contains(t, out, "<byday>TH</byday>")

	path := filepath.Join(t.TempDir(), "rule.xml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0600))

	out, err = run(t, "xcal", "--decode", path)
	require.NoError(t, err)
	assert.Equal(t, weekly, strings.TrimSpace(out))

	_, err = run(t, "xcal", "--rule", weekly+"\nRDATE:19971001T090000Z")
	assert.Error(t, err)
}

const calendarFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup
DTSTAMP:20240101T000000Z
SUMMARY:Standup
DTSTART:20240101T090000Z
DTEND:20240101T091500Z
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20240103T090000Z
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTAMP:20240101T000000Z
SUMMARY:Standup
RECURRENCE-ID:20240104T090000Z
DTSTART:20240104T100000Z
DTEND:20240104T101500Z
END:VEVENT
BEGIN:VEVENT
UID:review
DTSTAMP:20240101T000000Z
SUMMARY:Review
DTSTART:20240102T150000Z
DTEND:20240102T160000Z
END:VEVENT
END:VCALENDAR
`

func writeCalendar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cal.ics")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(calendarFixture, "\n", "\r\n")), 0600))
	return path
}

func TestICSCmd(t *testing.T) {
	path := writeCalendar(t)

	out, err := run(t, "ics", path, "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 5)
	assert.True(t, strings.HasPrefix(got[0], "2024-01-01T09:00:00Z\t2024-01-01T09:15:00Z\tStandup"))
	assert.True(t, strings.HasPrefix(got[1], "2024-01-02T09:00:00Z"))
	assert.True(t, strings.HasPrefix(got[2], "2024-01-04T10:00:00Z"))
	assert.True(t, strings.HasSuffix(got[2], "(moved)"))
	assert.True(t, strings.HasPrefix(got[4], "2024-01-02T15:00:00Z"))
}

func TestICSCmd_JSONAndUID(t *testing.T) {
	path := writeCalendar(t)

	out, err := run(t, "ics", path, "--from", "2024-01-01", "--to", "2024-01-31", "--uid", "standup", "--json")
	require.NoError(t, err)

	var rows []icsOccurrence
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, "standup", row.UID)
	}
	assert.True(t, rows[2].IsException)
	assert.Equal(t, 15*time.Minute, rows[0].End.Sub(rows[0].Start))
}

func TestICSCmd_Export(t *testing.T) {
	path := writeCalendar(t)

	_, err := run(t, "ics", path, "--from", "2024-01-01", "--to", "2024-01-31", "--export", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--uid")

	out, err := run(t, "ics", path, "--from", "2024-01-01", "--to", "2024-01-31", "--uid", "standup", "--export", "-")
	require.NoError(t, err)

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 4)
}

func TestICSCmd_Errors(t *testing.T) {
	_, err := run(t, "ics", filepath.Join(t.TempDir(), "missing.ics"))
	assert.Error(t, err)

	_, err = run(t, "ics", writeCalendar(t), "--from", "2024-02-01", "--to", "2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before")
}
