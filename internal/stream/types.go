package stream

import (
	"fmt"
	"strings"
)

// Period is the rollover granularity of a stream. Values match the
// "period" attribute of the IIS logFile configuration element.
type Period int

const (
	PeriodMaxSize Period = 0
	PeriodDaily   Period = 1
	PeriodWeekly  Period = 2
	PeriodMonthly Period = 3
	PeriodHourly  Period = 4
)

var periodNames = map[Period]string{
	PeriodMaxSize: "MaxSize",
	PeriodDaily:   "Daily",
	PeriodWeekly:  "Weekly",
	PeriodMonthly: "Monthly",
	PeriodHourly:  "Hourly",
}

func (p Period) String() string {
	if s, ok := periodNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Period(%d)", int(p))
}

// SizeBased reports whether files of this period are numbered rather than dated.
func (p Period) SizeBased() bool { return p == PeriodMaxSize }

// ParsePeriod accepts the period names case-insensitively ("size" is an
// alias for MaxSize).
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maxsize", "size":
		return PeriodMaxSize, nil
	case "daily":
		return PeriodDaily, nil
	case "weekly":
		return PeriodWeekly, nil
	case "monthly":
		return PeriodMonthly, nil
	case "hourly":
		return PeriodHourly, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q", ErrInvalidSpec, s)
}

// Format is the naming-token family of a stream. The non-negative values
// match the IIS "logFormat" attribute; the central formats are negative.
//
// In the rotation vocabulary: IIS is the historic "LegacyA" format, NCSA the
// historic "LegacyB" format, W3C the "Standard" format and CentralW3C the
// "CentralStandard" format.
type Format int

const (
	FormatCentralBinary Format = -2
	FormatCentralW3C    Format = -1
	FormatIIS           Format = 0
	FormatNCSA          Format = 1
	FormatW3C           Format = 2
	FormatCustom        Format = 3
	FormatHTTPError     Format = 4
)

var formatNames = map[Format]string{
	FormatCentralBinary: "CentralBinary",
	FormatCentralW3C:    "CentralW3C",
	FormatIIS:           "IIS",
	FormatNCSA:          "NCSA",
	FormatW3C:           "W3C",
	FormatCustom:        "Custom",
	FormatHTTPError:     "HTTPError",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat accepts format names case-insensitively, including the
// rotation vocabulary aliases (legacya, legacyb, standard).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "centralbinary", "binary":
		return FormatCentralBinary, nil
	case "centralw3c", "centralstandard":
		return FormatCentralW3C, nil
	case "iis", "legacya":
		return FormatIIS, nil
	case "ncsa", "legacyb":
		return FormatNCSA, nil
	case "", "w3c", "standard":
		return FormatW3C, nil
	case "custom", "odbc":
		return FormatCustom, nil
	case "httperror", "httperr":
		return FormatHTTPError, nil
	}
	return 0, fmt.Errorf("%w: unknown log format %q", ErrInvalidSpec, s)
}

// Extension is the file extension of plain log files.
type Extension string

const (
	ExtText   Extension = ".log"
	ExtBinary Extension = ".ibl"
)

// Service names the IIS service that owns a stream. It prefixes the log
// directory name (W3SVC1, FTPSVC2, ...).
type Service string

const (
	ServiceW3SVC    Service = "W3SVC"
	ServiceFTPSVC   Service = "FTPSVC"
	ServiceMSFTPSVC Service = "MSFTPSVC"
	ServiceSMTPSVC  Service = "SMTPSVC"
	ServiceNNTPSVC  Service = "NNTPSVC"
	ServiceHTTPERR  Service = "HTTPERR"
)

// ParseService accepts service names case-insensitively. Empty means W3SVC.
func ParseService(s string) (Service, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "W3SVC", "HTTP":
		return ServiceW3SVC, nil
	case "FTPSVC", "FTP":
		return ServiceFTPSVC, nil
	case "MSFTPSVC":
		return ServiceMSFTPSVC, nil
	case "SMTPSVC", "SMTP":
		return ServiceSMTPSVC, nil
	case "NNTPSVC", "NNTP":
		return ServiceNNTPSVC, nil
	case "HTTPERR":
		return ServiceHTTPERR, nil
	}
	return "", fmt.Errorf("%w: unknown service %q", ErrInvalidSpec, s)
}

// ftp reports whether per-site logs of the service are always W3C.
func (s Service) ftp() bool {
	return s == ServiceFTPSVC || s == ServiceMSFTPSVC
}

// Central selects a server-wide log shared by all sites of a service.
type Central int

const (
	CentralNone Central = iota
	CentralW3C
	CentralBinary
)

func (c Central) String() string {
	switch c {
	case CentralW3C:
		return "w3c"
	case CentralBinary:
		return "binary"
	}
	return "none"
}

// ParseCentral accepts "", "none", "w3c" and "binary".
func ParseCentral(s string) (Central, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "false":
		return CentralNone, nil
	case "w3c", "standard":
		return CentralW3C, nil
	case "binary":
		return CentralBinary, nil
	}
	return 0, fmt.Errorf("%w: unknown central mode %q", ErrInvalidSpec, s)
}
