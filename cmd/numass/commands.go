package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/inspect"
	"github.com/xtxerr/numass/internal/storage"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/types"
	"github.com/xtxerr/numass/internal/tree"
)

// =============================================================================
// ls
// =============================================================================

func (a *app) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "list a shelf or the fragments of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return printBrowse(cmd.OutOrStdout(), svc.Tree(), path)
		},
	}
}

func printBrowse(w io.Writer, t *tree.Tree, path string) error {
	res, err := t.Browse(path)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range res.Entries {
		switch e.Type {
		case tree.EntryFragment:
			fmt.Fprintf(tw, "%s\t%s\n", e.Type, e.Name)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Type, e.Name, e.Children, e.Description)
		}
	}
	return tw.Flush()
}

// =============================================================================
// points
// =============================================================================

func (a *app) pointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "points <run>",
		Short: "list the points of a run in index order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return printPoints(cmd.OutOrStdout(), svc, args[0])
		},
	}
}

func printPoints(w io.Writer, svc *storage.Service, path string) error {
	points, err := svc.ListPoints(path)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tFORMAT\tHV\tSTART\tLENGTH")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%s\n",
			p.Index(), p.Name(), p.Format(), p.Voltage(),
			p.StartTime().Format(time.RFC3339), p.Length())
	}
	return tw.Flush()
}

// =============================================================================
// inspect
// =============================================================================

func (a *app) inspectCommand() *cobra.Command {
	var accuracy float64
	cmd := &cobra.Command{
		Use:   "inspect <run> [point...]",
		Short: "summarize event counts and amplitude quantiles",
		Long: `
Stream every event of the selected points of a run and print the event
count, rate and amplitude quantiles per point plus a run total. Without
point names all points are summarized.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return printInspect(cmd.OutOrStdout(), svc, args[0], args[1:], accuracy)
		},
	}
	cmd.Flags().Float64Var(&accuracy, "accuracy", inspect.DefaultAccuracy, "relative accuracy of amplitude quantiles")
	return cmd
}

func printInspect(w io.Writer, svc *storage.Service, path string, names []string, accuracy float64) error {
	points, err := svc.ListPoints(path)
	if err != nil {
		return err
	}
	points, err = selectPoints(points, names)
	if err != nil {
		return err
	}

	per, total, err := inspect.SummarizeSet(path, points, accuracy)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INDEX\tNAME\tHV\tBLOCKS\tEVENTS\tRATE\tP50\tP90\tP99\t")
	row := func(s inspect.Summary, index string) {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d\t%d\t%.2f\t%.0f\t%.0f\t%.0f\t\n",
			index, s.Name, s.Voltage, s.Blocks, s.Events, s.Rate(), s.P50, s.P90, s.P99)
	}
	for _, s := range per {
		row(s, fmt.Sprint(s.Index))
	}
	row(total, "total")
	return tw.Flush()
}

func selectPoints(points []types.Point, names []string) ([]types.Point, error) {
	if len(names) == 0 {
		return points, nil
	}
	byName := make(map[string]types.Point, len(points))
	for _, p := range points {
		byName[p.Name()] = p
	}
	out := make([]types.Point, 0, len(names))
	for _, n := range names {
		p, ok := byName[n]
		if !ok {
			return nil, errors.Wrapf(errors.ErrFragmentNotFound, "point %s", n)
		}
		out = append(out, p)
	}
	return out, nil
}

// =============================================================================
// push
// =============================================================================

func (a *app) pushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push <shelf> <name> <archive|dir>",
		Short: "write a run archive into a shelf",
		Long: `
Write a run into the shelf as "<name>.<archive extension>". The source is
either an existing archive or a run directory whose regular files are
zipped with the configured push compression. An existing run archive of
the same name is overwritten.
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.pushPayload(args[2])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			ev, err := svc.PushNumassData(cmd.Context(), args[0], args[1], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s (%d bytes) id=%s", ev.File, ev.Size, ev.ID)
			if ev.Overwritten {
				fmt.Fprint(cmd.OutOrStdout(), " overwritten")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// pushPayload returns the archive bytes for src.
func (a *app) pushPayload(src string) ([]byte, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.WrapIO(err, "stat", src)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, errors.WrapIO(err, "read", src)
		}
		return data, nil
	}

	method, err := backend.ParseZipMethod(a.cfg.Push.Compression)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, errors.WrapIO(err, "list", src)
	}
	var files []backend.ZipFile
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return nil, errors.WrapIO(err, "read", e.Name())
		}
		files = append(files, backend.ZipFile{Name: e.Name(), Data: data})
	}
	if !hasFile(files, a.cfg.Layout.MetaFragment) {
		return nil, errors.NewMissingKey(filepath.Join(src, a.cfg.Layout.MetaFragment))
	}

	var buf bytes.Buffer
	if err := backend.WriteZip(&buf, files, method); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasFile(files []backend.ZipFile, name string) bool {
	for _, f := range files {
		if f.Name == name {
			return true
		}
	}
	return false
}

// =============================================================================
// journal
// =============================================================================

func (a *app) journalCommand() *cobra.Command {
	var (
		limit   int
		shelves bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "show recorded pushes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Push.Journal.Enabled || a.cfg.Push.Journal.Path == "" {
				return errors.NewValidation("push.journal", "enable a persistent journal to record pushes")
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			j := svc.Journal()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if shelves {
				summaries, err := j.Shelves(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "SHELF\tPUSHES\tBYTES\tLAST")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Shelf, s.Pushes, s.Bytes, s.LastPushAt.Format(time.RFC3339))
				}
				return tw.Flush()
			}

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "TIME\tSHELF\tNAME\tSIZE\tSOURCE\tID")
			for _, e := range entries {
				name := e.Name
				if e.Overwritten {
					name += " (overwritten)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.PushedAt.Format(time.RFC3339), e.Shelf, name, e.Size, e.Source, e.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of pushes to show")
	cmd.Flags().BoolVar(&shelves, "shelves", false, "summarize per shelf")
	return cmd
}
