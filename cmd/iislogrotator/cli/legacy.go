package cli

import "strings"

// NormalizeArgs maps the command line of the scheduled task that used to
// launch the rotator onto the command tree: no arguments runs a rotation,
// and the /simulate and /s switches (any case) select a dry run.
func NormalizeArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"run"}
	}
	out := make([]string, 0, len(args)+1)
	legacy := false
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "/simulate", "/s":
			out = append(out, "--simulate")
			legacy = true
		default:
			out = append(out, arg)
		}
	}
	if legacy && strings.HasPrefix(out[0], "-") {
		out = append([]string{"run"}, out...)
	}
	return out
}
