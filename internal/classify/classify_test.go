package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geeooff/iis-log-rotator/internal/stream"
)

func mustSpec(t *testing.T, opts stream.Options) stream.Spec {
	t.Helper()
	if opts.Root == "" && opts.Directory == "" {
		opts.Root = "/logs"
	}
	if opts.SiteID == 0 && opts.Central == stream.CentralNone && opts.Service != stream.ServiceHTTPERR {
		opts.SiteID = 1
	}
	opts.Enabled = true
	s, err := stream.New(opts)
	if err != nil {
		t.Fatalf("stream.New: %v", err)
	}
	return s
}

// fixedTimes returns a TimesFunc serving creation times by file name.
func fixedTimes(created map[string]time.Time) TimesFunc {
	return func(path string) (Times, error) {
		c, ok := created[filepath.Base(path)]
		if !ok {
			return Times{}, os.ErrNotExist
		}
		return Times{Created: c, Modified: c}, nil
	}
}

func TestClassifyDaily(t *testing.T) {
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodDaily})
	var c Classifier

	f, ok := c.Classify(spec, "ex240105.log")
	if !ok {
		t.Fatal("expected member")
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !f.LogicalDate.Equal(want) {
		t.Errorf("LogicalDate: expected %s, got %s", want, f.LogicalDate)
	}
	if f.LogicalDate.Location() != time.UTC {
		t.Errorf("expected UTC date, got %s", f.LogicalDate.Location())
	}
	if f.Archived {
		t.Error("plain file reported as archived")
	}
	if f.Path != filepath.Join(spec.Directory, "ex240105.log") {
		t.Errorf("Path: got %s", f.Path)
	}

	f, ok = c.Classify(spec, "ex240105.log.zip")
	if !ok || !f.Archived {
		t.Fatalf("expected archived member, got ok=%v archived=%v", ok, f.Archived)
	}
}

func TestClassifyRejections(t *testing.T) {
	var c Classifier
	daily := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodDaily})
	dailyUTF8 := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodDaily, UTF8: true})
	dailyCustom := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodDaily, CustomFields: true})
	hourly := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodHourly})
	monthly := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodMonthly})
	size := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodMaxSize})

	tests := []struct {
		name string
		spec stream.Spec
		file string
	}{
		{"no grammar match", daily, "access.log"},
		{"unexpected utf8 marker", daily, "u_ex240101.log"},
		{"missing utf8 marker", dailyUTF8, "ex240101.log"},
		{"unexpected custom fields", daily, "ex240101_x.log"},
		{"missing custom fields", dailyCustom, "ex240101.log"},
		{"wrong extension", daily, "ex240101.ibl"},
		{"size shape for dated stream", daily, "extend1.log"},
		{"dated shape for size stream", size, "ex240101.log"},
		{"wrong token", daily, "nc240101.log"},
		{"hour on daily stream", daily, "ex24010112.log"},
		{"missing hour", hourly, "ex240101.log"},
		{"day on monthly stream", monthly, "ex240101.log"},
		{"month out of range", daily, "ex241301.log"},
		{"day out of range", daily, "ex240230.log"},
		{"zero day", daily, "ex240100.log"},
		{"hour out of range", hourly, "ex24010124.log"},
		{"trailing garbage", daily, "ex240101.log.bak"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f, ok := c.Classify(tt.spec, tt.file); ok || f.Member {
				t.Errorf("%s should not be a member of %s", tt.file, tt.spec.Template)
			}
		})
	}
}

func TestClassifyTokens(t *testing.T) {
	var c Classifier
	tests := []struct {
		opts stream.Options
		file string
	}{
		{stream.Options{Central: stream.CentralBinary, Period: stream.PeriodDaily}, "ra240101.ibl"},
		{stream.Options{Central: stream.CentralBinary, Period: stream.PeriodMaxSize}, "raw12.ibl"},
		{stream.Options{Format: stream.FormatIIS, Period: stream.PeriodDaily}, "in240101.log"},
		{stream.Options{Format: stream.FormatIIS, Period: stream.PeriodMaxSize}, "inetsv3.log"},
		{stream.Options{Format: stream.FormatNCSA, Period: stream.PeriodDaily}, "nc240101.log"},
		{stream.Options{Format: stream.FormatNCSA, Period: stream.PeriodMaxSize}, "ncsa3.log"},
		{stream.Options{Central: stream.CentralW3C, Period: stream.PeriodDaily, UTF8: true}, "u_ex240101.log"},
		{stream.Options{Format: stream.FormatW3C, Period: stream.PeriodMaxSize}, "extend2401.log"},
		{stream.Options{Service: stream.ServiceHTTPERR, Root: "/httperr"}, "httperr4.log"},
	}
	c.Times = func(string) (Times, error) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return Times{Created: now, Modified: now}, nil
	}
	for _, tt := range tests {
		spec := mustSpec(t, tt.opts)
		if _, ok := c.Classify(spec, tt.file); !ok {
			t.Errorf("%s should be a member of %s", tt.file, spec.Template)
		}
	}
}

func TestClassifyRoundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC),
		time.Date(2031, 7, 15, 8, 30, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 12, 0, 0, 0, time.UTC),
	}
	formats := []stream.Options{
		{Format: stream.FormatW3C},
		{Format: stream.FormatW3C, UTF8: true, CustomFields: true},
		{Format: stream.FormatIIS},
		{Format: stream.FormatNCSA, UTF8: true},
		{Central: stream.CentralW3C},
		{Central: stream.CentralBinary},
	}
	periods := []stream.Period{stream.PeriodHourly, stream.PeriodDaily, stream.PeriodWeekly, stream.PeriodMonthly}

	var c Classifier
	for _, opts := range formats {
		for _, period := range periods {
			opts.Period = period
			spec := mustSpec(t, opts)
			for _, d := range dates {
				name := spec.Filename(d, 0)
				f, ok := c.Classify(spec, name)
				if !ok {
					t.Errorf("%s (%s) did not classify", name, spec.Template)
					continue
				}
				if !matchesGranularity(period, d, f.LogicalDate) {
					t.Errorf("%s: date %s does not round-trip %s", name, f.LogicalDate, d)
				}
			}
		}
	}
}

func matchesGranularity(p stream.Period, want, got time.Time) bool {
	switch p {
	case stream.PeriodHourly:
		return got.Equal(want.Truncate(time.Hour))
	case stream.PeriodDaily:
		return got.Equal(time.Date(want.Year(), want.Month(), want.Day(), 0, 0, 0, 0, time.UTC))
	case stream.PeriodMonthly:
		return got.Equal(time.Date(want.Year(), want.Month(), 1, 0, 0, 0, 0, time.UTC))
	case stream.PeriodWeekly:
		return got.Year() == want.Year() && got.Month() == want.Month() &&
			stream.WeekOfMonth(got) == stream.WeekOfMonth(want) && !got.After(want)
	}
	return false
}

func TestClassifyWeekly(t *testing.T) {
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodWeekly})
	var c Classifier
	tests := []struct {
		file string
		want time.Time
		ok   bool
	}{
		// February 2024 starts on a Thursday; week 2 starts Monday the 5th.
		{"ex240201.log", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), true},
		{"ex240202.log", time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), true},
		{"ex240205.log", time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), true},
		{"ex240206.log", time.Time{}, false},
		{"ex240200.log", time.Time{}, false},
	}
	for _, tt := range tests {
		f, ok := c.Classify(spec, tt.file)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.file, ok, tt.ok)
			continue
		}
		if ok && !f.LogicalDate.Equal(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.file, f.LogicalDate, tt.want)
		}
	}
}

func TestClassifyLocalTimeRollover(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodHourly, LocalTimeRollover: true})
	c := Classifier{Location: loc}

	f, ok := c.Classify(spec, "ex24010102.log")
	if !ok {
		t.Fatal("expected member")
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !f.LogicalDate.Equal(want) {
		t.Errorf("expected %s, got %s", want, f.LogicalDate.UTC())
	}
}

func TestClassifyCenturyRule(t *testing.T) {
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodMonthly})

	c := Classifier{Century: Pivot{Max: 2029}}
	f, _ := c.Classify(spec, "ex3001.log")
	if f.LogicalDate.Year() != 1930 {
		t.Errorf("Pivot 2029: expected 1930, got %d", f.LogicalDate.Year())
	}
	f, _ = c.Classify(spec, "ex2901.log")
	if f.LogicalDate.Year() != 2029 {
		t.Errorf("Pivot 2029: expected 2029, got %d", f.LogicalDate.Year())
	}

	c = Classifier{Century: DefaultPivot}
	f, _ = c.Classify(spec, "ex3001.log")
	if f.LogicalDate.Year() != 2030 {
		t.Errorf("DefaultPivot: expected 2030, got %d", f.LogicalDate.Year())
	}
	f, _ = c.Classify(spec, "ex9912.log")
	if f.LogicalDate.Year() != 1999 {
		t.Errorf("DefaultPivot: expected 1999, got %d", f.LogicalDate.Year())
	}
}

func TestSlidingPivot(t *testing.T) {
	p := SlidingPivot(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 10)
	if p.Max != 2036 {
		t.Fatalf("expected Max 2036, got %d", p.Max)
	}
	if got := p.FourDigitYear(36); got != 2036 {
		t.Errorf("FourDigitYear(36) = %d", got)
	}
	if got := p.FourDigitYear(37); got != 1937 {
		t.Errorf("FourDigitYear(37) = %d", got)
	}
}

func TestClassifyPurity(t *testing.T) {
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodDaily})
	calls := 0
	c := Classifier{Times: func(string) (Times, error) {
		calls++
		return Times{}, errors.New("must not be called")
	}}
	a, okA := c.Classify(spec, "ex240101.log")
	b, okB := c.Classify(spec, "ex240101.log")
	if okA != okB || !a.LogicalDate.Equal(b.LogicalDate) || a.Path != b.Path {
		t.Error("Classify is not deterministic")
	}
	if calls != 0 {
		t.Errorf("dated classification touched the filesystem %d times", calls)
	}
}

func TestClassifyMaxSizeUsesCreationTime(t *testing.T) {
	spec := mustSpec(t, stream.Options{Format: stream.FormatW3C, Period: stream.PeriodMaxSize})
	created := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	c := Classifier{Times: fixedTimes(map[string]time.Time{"extend9.log": created})}

	f, ok := c.Classify(spec, "extend9.log")
	if !ok {
		t.Fatal("expected member")
	}
	if f.Index != 9 {
		t.Errorf("Index: expected 9, got %d", f.Index)
	}
	if !f.LogicalDate.Equal(created) || !f.Created.Equal(created) {
		t.Errorf("expected creation time %s, got logical %s created %s", created, f.LogicalDate, f.Created)
	}

	// A file that cannot be read is not a member.
	if _, ok := c.Classify(spec, "extend10.log"); ok {
		t.Error("unreadable file classified as member")
	}
}

func TestSortMaxSizeByCreationTime(t *testing.T) {
	dir := t.TempDir()
	spec := mustSpec(t, stream.Options{Directory: dir, Format: stream.FormatW3C, Period: stream.PeriodMaxSize})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := map[string]time.Time{}
	// ReadDir returns extend1, extend10, extend2, ... in name order.
	for i, name := range []string{"extend1.log", "extend2.log", "extend3.log", "extend10.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		created[name] = base.Add(time.Duration(i) * time.Hour)
	}

	c := Classifier{Times: fixedTimes(created)}
	l, err := c.Scan(context.Background(), spec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []int
	for _, f := range l.Plain {
		got = append(got, f.Index)
	}
	want := []int{1, 2, 3, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScanSeparatesArchives(t *testing.T) {
	dir := t.TempDir()
	spec := mustSpec(t, stream.Options{Directory: dir, Format: stream.FormatW3C, Period: stream.PeriodDaily})
	for _, name := range []string{
		"ex240103.log", "ex240101.log", "ex240102.log.zip", "ex240104.log",
		"notes.txt", "u_ex240105.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "ex240106.log"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var c Classifier
	l, err := c.Scan(context.Background(), spec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(l.Plain) != 3 {
		t.Fatalf("expected 3 plain files, got %d", len(l.Plain))
	}
	if len(l.Archived) != 1 || l.Archived[0].Name != "ex240102.log.zip" {
		t.Fatalf("unexpected archives: %+v", l.Archived)
	}
	if l.Ignored != 3 {
		t.Errorf("expected 3 ignored entries, got %d", l.Ignored)
	}
	for i := 1; i < len(l.Plain); i++ {
		if !l.Plain[i].LogicalDate.After(l.Plain[i-1].LogicalDate) {
			t.Errorf("plain files not strictly increasing at %d", i)
		}
	}
	for _, f := range l.Plain {
		if !f.Exists {
			t.Errorf("%s: Exists should be true", f.Name)
		}
	}
}

func TestScanMissingDirectory(t *testing.T) {
	spec := mustSpec(t, stream.Options{Directory: filepath.Join(t.TempDir(), "missing"), Period: stream.PeriodDaily})
	var c Classifier
	if _, err := c.Scan(context.Background(), spec); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestSortStable(t *testing.T) {
	spec := mustSpec(t, stream.Options{Period: stream.PeriodDaily})
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []File{
		{Name: "b", LogicalDate: d.Add(24 * time.Hour)},
		{Name: "a1", LogicalDate: d},
		{Name: "a2", LogicalDate: d},
	}
	Sort(spec, files)
	if files[0].Name != "a1" || files[1].Name != "a2" || files[2].Name != "b" {
		t.Errorf("unexpected order: %s %s %s", files[0].Name, files[1].Name, files[2].Name)
	}
}
