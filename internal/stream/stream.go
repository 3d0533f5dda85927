// Package stream describes IIS logging streams: where a stream writes its
// files and how those files are named.
//
// A Spec is immutable for the duration of a run. It carries everything the
// classifier needs to recognize the stream's files and everything needed to
// generate them again (Filename), so the two always round-trip.
package stream

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSpec  = errors.New("invalid stream spec")
	ErrDisabled     = errors.New("logging is disabled")
	ErrCustomFormat = errors.New("custom logging format is not rotatable")
)

// Spec is the descriptor of one logging stream.
type Spec struct {
	ID      string
	Service Service
	SiteID  int64 // zero for central and HTTP.sys error streams
	Central Central

	Enabled           bool
	UTF8              bool
	CustomFields      bool
	Directory         string
	Template          string
	Extension         Extension
	Period            Period
	Format            Format
	LocalTimeRollover bool

	// TruncateSize is the size threshold of MaxSize streams. Informational.
	TruncateSize int64
}

// Options is the host logging configuration of one stream.
type Options struct {
	// ID overrides the derived stream id.
	ID      string
	Service Service
	// Root is the log files root (the IIS "directory" attribute).
	Root string
	// Directory overrides the derived <Root>/<SERVICE>[<SiteID>] directory.
	Directory string
	SiteID    int64
	Central   Central

	// Format is the per-site logFormat. Ignored for central and HTTP.sys
	// error streams, and for FTP sites which always log in W3C.
	Format Format
	Period Period

	UTF8              bool
	CustomFields      bool
	Enabled           bool
	LocalTimeRollover bool
	TruncateSize      int64
}

// New builds a Spec from host configuration.
func New(opts Options) (Spec, error) {
	svc := opts.Service
	if svc == "" {
		svc = ServiceW3SVC
	}
	if _, ok := periodNames[opts.Period]; !ok {
		return Spec{}, fmt.Errorf("%w: period %d", ErrInvalidSpec, int(opts.Period))
	}

	s := Spec{
		Service:           svc,
		Central:           opts.Central,
		Enabled:           opts.Enabled,
		UTF8:              opts.UTF8,
		CustomFields:      opts.CustomFields,
		Extension:         ExtText,
		Period:            opts.Period,
		LocalTimeRollover: opts.LocalTimeRollover,
		TruncateSize:      opts.TruncateSize,
	}

	switch {
	case svc == ServiceHTTPERR:
		// HTTP.sys writes httperr<N>.log straight into its root.
		s.ID = string(ServiceHTTPERR)
		s.Format = FormatHTTPError
		s.Period = PeriodMaxSize
		s.UTF8 = false
		s.CustomFields = false
		s.Central = CentralNone
		s.Directory = opts.Root

	case opts.Central == CentralBinary:
		if svc != ServiceW3SVC {
			return Spec{}, fmt.Errorf("%w: central binary logging is only available for %s", ErrInvalidSpec, ServiceW3SVC)
		}
		s.ID = centralID(svc)
		s.Format = FormatCentralBinary
		s.Extension = ExtBinary
		s.UTF8 = false
		s.CustomFields = false
		s.Directory = filepath.Join(opts.Root, string(svc))

	case opts.Central == CentralW3C:
		s.ID = centralID(svc)
		s.Format = FormatCentralW3C
		s.Directory = filepath.Join(opts.Root, string(svc))

	default:
		if opts.SiteID <= 0 {
			return Spec{}, fmt.Errorf("%w: per-site stream of %s requires a site id", ErrInvalidSpec, svc)
		}
		s.SiteID = opts.SiteID
		s.ID = string(svc) + strconv.FormatInt(opts.SiteID, 10)
		s.Directory = filepath.Join(opts.Root, s.ID)
		s.Format = opts.Format
		if svc.ftp() {
			s.Format = FormatW3C
		}
		switch s.Format {
		case FormatIIS, FormatNCSA, FormatW3C, FormatCustom:
		default:
			return Spec{}, fmt.Errorf("%w: format %s is not a per-site format", ErrInvalidSpec, s.Format)
		}
	}

	if opts.ID != "" {
		s.ID = opts.ID
	}
	if opts.Directory != "" {
		s.Directory = opts.Directory
	}
	if s.Directory == "" {
		return Spec{}, fmt.Errorf("%w: stream %s has no directory", ErrInvalidSpec, s.ID)
	}
	s.Directory = filepath.Clean(s.Directory)
	s.Template = s.template()
	return s, nil
}

func centralID(svc Service) string {
	if svc == ServiceW3SVC {
		return "central"
	}
	return "central-" + strings.ToLower(string(svc))
}

// Rotatable returns nil when the stream's files may be classified and rotated.
func (s Spec) Rotatable() error {
	if !s.Enabled {
		return ErrDisabled
	}
	if s.Format == FormatCustom {
		return ErrCustomFormat
	}
	return nil
}

// Zone returns the time zone of the stream's file boundaries.
func (s Spec) Zone(local *time.Location) *time.Location {
	if s.LocalTimeRollover {
		if local == nil {
			return time.Local
		}
		return local
	}
	return time.UTC
}

// template renders the naming convention in a human readable form, e.g.
// "u_ex{yyMMdd}.log" or "extend{n}.log". It is empty for custom streams.
func (s Spec) template() string {
	token, ok := Token(s.Format, s.Period.SizeBased())
	if !ok {
		return ""
	}
	var field string
	switch s.Period {
	case PeriodMaxSize:
		field = "{n}"
	case PeriodHourly:
		field = "{yyMMddHH}"
	case PeriodDaily:
		field = "{yyMMdd}"
	case PeriodWeekly:
		field = "{yyMMWW}"
	case PeriodMonthly:
		field = "{yyMM}"
	}
	return s.prefix() + token + field + s.suffix()
}

func (s Spec) prefix() string {
	if s.UTF8 {
		return UTF8Prefix
	}
	return ""
}

func (s Spec) suffix() string {
	if s.CustomFields {
		return CustomFieldsSuffix + string(s.Extension)
	}
	return string(s.Extension)
}

// Filename generates the canonical name of the file covering date (dated
// periods) or numbered index (MaxSize). date is formatted as given; callers
// pass it in the stream's Zone. It returns "" for custom streams.
func (s Spec) Filename(date time.Time, index int) string {
	token, ok := Token(s.Format, s.Period.SizeBased())
	if !ok {
		return ""
	}
	var field string
	switch s.Period {
	case PeriodMaxSize:
		field = strconv.Itoa(index)
	case PeriodHourly:
		field = date.Format("06010215")
	case PeriodDaily:
		field = date.Format("060102")
	case PeriodWeekly:
		field = date.Format("0601") + fmt.Sprintf("%02d", WeekOfMonth(date))
	case PeriodMonthly:
		field = date.Format("0601")
	}
	return s.prefix() + token + field + s.suffix()
}

// ArchiveName returns the compressed counterpart of a plain file name.
func ArchiveName(name string) string {
	return name + ArchiveSuffix
}

// WeekOfMonth returns the 1-based week of the month containing t. Weeks
// start on Monday, as in ISO 8601: it is the ISO week-of-year of t minus the
// ISO week-of-year of the month's first day, plus one, computed without the
// year-boundary wrap of ISO week numbers.
func WeekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	offset := (int(first.Weekday()) + 6) % 7 // days since Monday
	return (offset+t.Day()-1)/7 + 1
}
