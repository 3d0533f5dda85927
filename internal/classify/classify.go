// Package classify recognizes the files of a logging stream and recovers the
// date each file stands for.
//
// Every naming convention is matched by one grammar:
//
//	[u_] ( <date token> YY MM [DD|WW] [HH] | <size token> N ) [_x] <ext> [.zip]
//
// The tokens come from stream.Token, so the grammar and filename generation
// share one table. A name matching the grammar is a member of a stream only
// when every marker, the extension, the token and the numeric fields agree
// with the stream's Spec.
package classify

import (
	"cmp"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/stream"
)

// File is a directory entry classified against a stream.
type File struct {
	Path     string
	Name     string
	Exists   bool
	Created  time.Time
	Modified time.Time

	// Member is true when the name belongs to the stream's series.
	Member bool
	// Archived is true for compressed counterparts (name + ".zip").
	Archived bool
	// LogicalDate is the rotation period the file stands for. For MaxSize
	// streams it is the creation time.
	LogicalDate time.Time
	// Index is the sequence number of MaxSize files.
	Index int
}

var grammar = buildGrammar()

func buildGrammar() *regexp.Regexp {
	var dateTokens, sizeTokens []string
	for _, f := range []stream.Format{
		stream.FormatCentralBinary, stream.FormatCentralW3C, stream.FormatIIS,
		stream.FormatNCSA, stream.FormatW3C, stream.FormatHTTPError,
	} {
		if t, ok := stream.Token(f, false); ok {
			dateTokens = append(dateTokens, t)
		}
		if t, ok := stream.Token(f, true); ok {
			sizeTokens = append(sizeTokens, t)
		}
	}
	return regexp.MustCompile(`^(?P<utf8>` + regexp.QuoteMeta(stream.UTF8Prefix) + `)?` +
		`(?:(?P<dated>(?P<dtoken>` + alternation(dateTokens) + `)(?P<year>\d{2})(?P<month>\d{2})(?P<dayweek>\d{2})?(?P<hour>\d{2})?)` +
		`|(?P<sized>(?P<stoken>` + alternation(sizeTokens) + `)(?P<index>\d+)))` +
		`(?P<custom>` + regexp.QuoteMeta(stream.CustomFieldsSuffix) + `)?` +
		`(?P<ext>` + regexp.QuoteMeta(string(stream.ExtText)) + `|` + regexp.QuoteMeta(string(stream.ExtBinary)) + `)` +
		`(?P<zip>` + regexp.QuoteMeta(stream.ArchiveSuffix) + `)?$`)
}

// alternation quotes and joins tokens, longest first.
func alternation(tokens []string) string {
	tokens = slices.Clone(tokens)
	slices.SortFunc(tokens, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	tokens = slices.Compact(tokens)
	for i, t := range tokens {
		tokens[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(tokens, "|")
}

// Classifier classifies filenames. The zero value uses DefaultPivot, the
// process local time zone for local-time rollover streams and ReadTimes.
type Classifier struct {
	Century  CenturyRule
	Location *time.Location
	Times    TimesFunc
}

// Classify matches name against the stream. The result is a pure function
// of (spec, name) except for MaxSize streams, whose logical date is the
// file's creation time read from spec.Directory.
func (c *Classifier) Classify(spec stream.Spec, name string) (File, bool) {
	f := File{Name: name, Path: filepath.Join(spec.Directory, name)}

	m := grammar.FindStringSubmatch(name)
	if m == nil {
		return f, false
	}
	group := func(g string) string { return m[grammar.SubexpIndex(g)] }

	if (group("utf8") != "") != spec.UTF8 {
		return f, false
	}
	if (group("custom") != "") != spec.CustomFields {
		return f, false
	}
	if group("ext") != string(spec.Extension) {
		return f, false
	}
	sizeBased := group("sized") != ""
	if sizeBased != spec.Period.SizeBased() {
		return f, false
	}
	want, ok := stream.Token(spec.Format, sizeBased)
	if !ok {
		return f, false
	}
	token := group("dtoken")
	if sizeBased {
		token = group("stoken")
	}
	if token != want {
		return f, false
	}
	f.Archived = group("zip") != ""

	if sizeBased {
		index, err := strconv.Atoi(group("index"))
		if err != nil {
			return f, false
		}
		times, err := c.times()(f.Path)
		if err != nil {
			return f, false
		}
		f.Index = index
		f.Exists = true
		f.Created = times.Created
		f.Modified = times.Modified
		f.LogicalDate = times.Created
		f.Member = true
		return f, true
	}

	date, ok := c.date(spec, group("year"), group("month"), group("dayweek"), group("hour"))
	if !ok {
		return f, false
	}
	f.LogicalDate = date
	f.Member = true
	return f, true
}

// date validates which numeric fields are present for the stream's period
// and resolves them to the first instant of the period.
func (c *Classifier) date(spec stream.Spec, yy, mm, dw, hh string) (time.Time, bool) {
	switch spec.Period {
	case stream.PeriodHourly:
		if dw == "" || hh == "" {
			return time.Time{}, false
		}
	case stream.PeriodDaily, stream.PeriodWeekly:
		if dw == "" || hh != "" {
			return time.Time{}, false
		}
	case stream.PeriodMonthly:
		if dw != "" {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	year := c.century().FourDigitYear(atoi(yy))
	month := atoi(mm)
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	loc := spec.Zone(c.Location)

	switch spec.Period {
	case stream.PeriodMonthly:
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc), true
	case stream.PeriodWeekly:
		return resolveWeek(year, time.Month(month), atoi(dw), loc)
	}

	day := atoi(dw)
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	hour := 0
	if spec.Period == stream.PeriodHourly {
		hour = atoi(hh)
		if hour > 23 {
			return time.Time{}, false
		}
	}
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, loc), true
}

func (c *Classifier) century() CenturyRule {
	if c.Century == nil {
		return DefaultPivot
	}
	return c.Century
}

func (c *Classifier) times() TimesFunc {
	if c.Times == nil {
		return ReadTimes
	}
	return c.Times
}

// atoi parses a field the grammar already restricted to digits.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
