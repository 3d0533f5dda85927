package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/geeooff/iis-log-rotator/internal/stream"
)

type streamView struct {
	ID        string `json:"id"`
	Service   string `json:"service"`
	Period    string `json:"period"`
	Format    string `json:"format"`
	Template  string `json:"template"`
	Directory string `json:"directory"`
	Policy    string `json:"policy"`
	Status    string `json:"status"`
}

func (a *app) newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the streams a run would process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			cfg, err := a.loadConfig(ctx, s)
			if err != nil {
				return err
			}
			specs, err := a.expand(ctx, cfg, nil)
			if err != nil {
				return err
			}

			views := make([]streamView, 0, len(specs))
			for _, spec := range specs {
				policy := cfg.PolicyFor(spec)
				status := "ok"
				switch {
				case spec.Rotatable() != nil:
					status = spec.Rotatable().Error()
				case !policy.Enabled():
					status = "no policy"
				}
				views = append(views, streamView{
					ID:        spec.ID,
					Service:   string(spec.Service),
					Period:    spec.Period.String(),
					Format:    spec.Format.String(),
					Template:  spec.Template,
					Directory: spec.Directory,
					Policy:    policy.String(),
					Status:    status,
				})
			}

			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(views)
			}
			var rows [][]string
			for _, v := range views {
				rows = append(rows, []string{v.ID, v.Period, v.Template, v.Directory, v.Policy, v.Status})
			}
			p.table([]string{"ID", "PERIOD", "TEMPLATE", "DIRECTORY", "POLICY", "STATUS"}, rows)
			return nil
		},
	}
}

type classifyView struct {
	Name        string    `json:"name"`
	Member      bool      `json:"member"`
	Archived    bool      `json:"archived,omitempty"`
	LogicalDate time.Time `json:"logicalDate,omitzero"`
	Index       int       `json:"index,omitempty"`
}

func (a *app) newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <stream-id> <file-name>...",
		Short: "Show how file names are classified against a stream",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			cfg, err := a.loadConfig(ctx, s)
			if err != nil {
				return err
			}
			classifier, err := classifierFor(cfg)
			if err != nil {
				return err
			}
			specs, err := a.expand(ctx, cfg, args[:1])
			if err != nil {
				return err
			}
			spec := specs[0]

			views := make([]classifyView, 0, len(args)-1)
			for _, name := range args[1:] {
				f, ok := classifier.Classify(spec, name)
				v := classifyView{Name: name, Member: ok}
				if ok {
					v.Archived = f.Archived
					v.LogicalDate = f.LogicalDate
					v.Index = f.Index
				}
				views = append(views, v)
			}

			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(views)
			}
			var rows [][]string
			for _, v := range views {
				date, index := "", ""
				if v.Member {
					date = v.LogicalDate.Format(dateLayout(spec))
					if spec.Period.SizeBased() {
						index = strconv.Itoa(v.Index)
					}
				}
				rows = append(rows, []string{v.Name, yesNo(v.Member), yesNo(v.Archived), date, index})
			}
			p.table([]string{"NAME", "MEMBER", "ARCHIVED", "DATE", "INDEX"}, rows)
			return nil
		},
	}
}

func dateLayout(spec stream.Spec) string {
	switch spec.Period {
	case stream.PeriodMonthly:
		return "2006-01"
	case stream.PeriodDaily, stream.PeriodWeekly:
		return "2006-01-02"
	}
	return time.RFC3339
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
