package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/geeooff/iis-log-rotator/internal/report"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

// printer handles table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(cmd *cobra.Command) *printer {
	return &printer{format: outputFormat(cmd), w: cmd.OutOrStdout()}
}

func (p *printer) isJSON() bool { return p.format == "json" }

// json marshals v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	_ = tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, col)
	}
	_, _ = fmt.Fprintln(w)
}

// kv prints a key-value detail view.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

// run prints a run report: one row per stream, then the totals.
func (p *printer) run(r report.Run) error {
	if p.isJSON() {
		return p.json(r)
	}
	var rows [][]string
	for _, s := range r.Streams {
		status := "ok"
		if s.Skipped() {
			status = "skipped: " + string(s.Skip)
		}
		rows = append(rows, []string{
			s.ID, s.Directory, status,
			strconv.Itoa(s.Compressed),
			strconv.Itoa(s.Deleted),
			strconv.Itoa(s.Failed),
		})
	}
	p.table([]string{"STREAM", "DIRECTORY", "STATUS", "COMPRESSED", "DELETED", "FAILED"}, rows)

	compressed, deleted, failed, skipped := r.Totals()
	mode := ""
	if r.DryRun {
		mode = " (simulated)"
	}
	_, err := fmt.Fprintf(p.w, "\n%d compressed, %d deleted, %d failed, %d skipped%s in %s\n",
		compressed, deleted, failed, skipped, mode, r.Duration().Round(time.Millisecond))
	return err
}

func formatPolicy(p retention.Policy) []string {
	return []string{
		onOff(p.Compress), strconv.Itoa(p.CompressAfterDays),
		onOff(p.Delete), strconv.Itoa(p.DeleteAfterDays),
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
