package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/imamik/nodekit/internal/compute/strategy"
)

type cleanupView struct {
	DryRun  bool              `json:"dryRun"`
	Orphans []strategy.Orphan `json:"orphans"`
}

// Cleanup handles "cleanup". The orphans found are printed even when some
// of them could not be deleted.
func Cleanup(ctx context.Context, opts Options, w io.Writer, group string, dryRun bool) error {
	if err := checkOutput(opts.Output); err != nil {
		return err
	}
	if group == "" {
		return fmt.Errorf("--group is required")
	}
	return run(ctx, opts, func(s *session) error {
		orphans, err := s.svc.SweepGroup(ctx, group, dryRun)
		if orphans == nil {
			orphans = []strategy.Orphan{}
		}
		if rerr := renderCleanup(w, opts.Output, cleanupView{DryRun: dryRun, Orphans: orphans}); rerr != nil {
			return rerr
		}
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		return nil
	})
}

func renderCleanup(w io.Writer, format string, view cleanupView) error {
	if format == OutputJSON {
		return writeJSON(w, view)
	}
	tbl := newTable("KIND", "ID", "NAME")
	for _, o := range view.Orphans {
		tbl.add(string(o.Kind), o.ID, orDash(o.Name))
	}
	if err := tbl.render(w); err != nil {
		return err
	}
	if len(view.Orphans) == 0 {
		return nil
	}
	if view.DryRun {
		fmt.Fprintln(w, paint(amberStyle, fmt.Sprintf("%d resources would be deleted", len(view.Orphans))))
	} else {
		fmt.Fprintln(w, paint(greenStyle, fmt.Sprintf("Deleted %d resources", len(view.Orphans))))
	}
	return nil
}
