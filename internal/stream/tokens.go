package stream

// Markers and suffixes shared by every naming convention.
const (
	UTF8Prefix         = "u_"
	CustomFieldsSuffix = "_x"
	ArchiveSuffix      = ".zip"
)

// tokens is the single source of truth for filename tokens, keyed by format.
// An empty token means the format has no filenames of that shape.
var tokens = map[Format]struct{ size, date string }{
	FormatCentralBinary: {size: "raw", date: "ra"},
	FormatIIS:           {size: "inetsv", date: "in"},
	FormatNCSA:          {size: "ncsa", date: "nc"},
	FormatW3C:           {size: "extend", date: "ex"},
	FormatCentralW3C:    {size: "extend", date: "ex"},
	FormatHTTPError:     {size: "httperr"},
}

// Token returns the filename token for a format and shape. ok is false for
// Custom and for shapes a format never produces.
func Token(f Format, sizeBased bool) (token string, ok bool) {
	t, found := tokens[f]
	if !found {
		return "", false
	}
	if sizeBased {
		return t.size, t.size != ""
	}
	return t.date, t.date != ""
}
