package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/odeviz/internal/archive"
	"github.com/san-kum/odeviz/internal/batch"
	"github.com/san-kum/odeviz/internal/config"
	"github.com/san-kum/odeviz/internal/coordinator"
	"github.com/san-kum/odeviz/internal/equation"
)

type saveFlags struct {
	eqType string
	params []string
	preset string
	y0     float64
	yp0    float64
	tMin   float64
	tMax   float64
	name   string
	tags   []string
	desc   string
}

type listFlags struct {
	limit      int
	sortBy     string
	descending bool
}

type searchFlags struct {
	eqType string
	tags   []string
}

func (a *cli) archiveCommands() []*cobra.Command {
	var sf saveFlags
	saveCmd := &cobra.Command{
		Use:   "save [results.json]",
		Short: "save a solver result",
		Args:  cobra.ExactArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			return a.save(cmd, args[0], &sf, c)
		}),
	}
	saveCmd.Flags().StringVar(&sf.eqType, "type", "", "equation type (default from config)")
	saveCmd.Flags().StringArrayVar(&sf.params, "param", nil, "equation parameter as name=value (repeatable)")
	saveCmd.Flags().StringVar(&sf.preset, "preset", "", "start from a preset")
	saveCmd.Flags().Float64Var(&sf.y0, "y0", 0, "initial value y(t0)")
	saveCmd.Flags().Float64Var(&sf.yp0, "yp0", 0, "initial slope y'(t0)")
	saveCmd.Flags().Float64Var(&sf.tMin, "tmin", 0, "start of the time range")
	saveCmd.Flags().Float64Var(&sf.tMax, "tmax", 0, "end of the time range")
	saveCmd.Flags().StringVar(&sf.name, "name", "", "record name (generated when empty)")
	saveCmd.Flags().StringSliceVar(&sf.tags, "tag", nil, "tag (repeatable)")
	saveCmd.Flags().StringVar(&sf.desc, "desc", "", "description")

	var lf listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved simulations",
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			limit := lf.limit
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.ListLimit
			}
			rows := c.List(archive.ListOptions{
				Limit:      limit,
				SortBy:     archive.SortKey(lf.sortBy),
				Descending: lf.descending,
			})
			return printSummaries(cmd, rows)
		}),
	}
	listCmd.Flags().IntVar(&lf.limit, "limit", 0, "maximum rows, 0 for all (default from config)")
	listCmd.Flags().StringVar(&lf.sortBy, "sort", string(archive.SortByCreatedAt), "sort key: id, name, created_at, amplitude")
	listCmd.Flags().BoolVar(&lf.descending, "desc", true, "sort descending")

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "show one simulation",
		Args:  cobra.ExactArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := c.LoadForDisplay(id)
			if err != nil {
				return err
			}
			if showJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(map[string]any{"metadata": d.Metadata, "results": d.Results})
			}
			printDisplay(cmd, d)
			return nil
		}),
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the full record as JSON")

	var qf searchFlags
	searchCmd := &cobra.Command{
		Use:   "search [text]",
		Short: "search by name, equation type and tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			text := ""
			if len(args) > 0 {
				text = args[0]
			}
			return printSummaries(cmd, c.Search(qf.eqType, text, qf.tags))
		}),
	}
	searchCmd.Flags().StringVar(&qf.eqType, "type", "", "equation type")
	searchCmd.Flags().StringSliceVar(&qf.tags, "tag", nil, "match any of these tags (repeatable)")

	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "list tags by usage",
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			tags := c.Tags()
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tags")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tCOUNT")
			for _, t := range tags {
				fmt.Fprintf(w, "%s\t%d\n", t.Name, t.Count)
			}
			return w.Flush()
		}),
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "archive statistics",
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			st := c.Statistics()
			out := cmd.OutOrStdout()
			title(out, "archive")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "file\t%s\n", st.Path)
			fmt.Fprintf(w, "simulations\t%d\n", st.TotalSimulations)
			fmt.Fprintf(w, "last id\t%d\n", st.LastID)
			fmt.Fprintf(w, "size\t%s\n", st.FileSize)
			fmt.Fprintf(w, "compression\t%.1f%%\n", st.CompressionRatio*100)
			fmt.Fprintf(w, "created\t%s\n", st.CreatedAt)
			fmt.Fprintf(w, "updated\t%s\n", st.UpdatedAt)
			types := make([]string, 0, len(st.EquationTypes))
			for t := range st.EquationTypes {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(w, "  %s\t%d\n", t, st.EquationTypes[t])
			}
			return w.Flush()
		}),
	}

	exportCmd := &cobra.Command{
		Use:   "export [id] [file]",
		Short: "export one simulation to a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.ExportToFile(id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported #%d to %s\n", id, args[1])
			return nil
		}),
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "import a previously exported simulation",
		Args:  cobra.ExactArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			id, err := c.ImportFromFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported as #%d\n", id)
			return nil
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]...",
		Short: "delete simulations",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := c.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			}
			return nil
		}),
	}

	batchCmd := &cobra.Command{
		Use:   "batch [manifest.yaml]",
		Short: "save every solver result listed in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
			m, err := batch.LoadManifest(args[0])
			if err != nil {
				return err
			}
			outcomes, err := batch.Run(cmd.Context(), m, filepath.Dir(args[0]), c)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if m.Name != "" {
				title(out, m.Name)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENTRY\tNAME\tID\tSTATUS")
			failed := 0
			for _, o := range outcomes {
				status, id := "saved", strconv.FormatInt(o.ID, 10)
				if o.Err != nil {
					failed++
					status, id = o.Err.Error(), "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", o.Entry, o.Name, id, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d entries failed", failed, len(outcomes))
			}
			return nil
		}),
	}

	return []*cobra.Command{saveCmd, listCmd, showCmd, searchCmd, tagsCmd, statsCmd, exportCmd, importCmd, deleteCmd, batchCmd}
}

func (a *cli) save(cmd *cobra.Command, path string, sf *saveFlags, c *coordinator.Coordinator) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var result map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	snap, err := a.snapshot(cmd, sf)
	if err != nil {
		return err
	}
	snap.Result = result

	id, err := c.SaveCurrentSimulation(snap, sf.name, sf.tags, sf.desc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved #%d\n", id)
	return nil
}

// snapshot layers config defaults, then the preset, then explicit flags.
func (a *cli) snapshot(cmd *cobra.Command, sf *saveFlags) (*coordinator.Snapshot, error) {
	d := a.cfg.Defaults
	snap := &coordinator.Snapshot{
		Type:     d.EquationType,
		Controls: map[string]any{},
		Initial:  a.cfg.InitialConditions(),
	}
	tr := a.cfg.TimeRange()
	snap.Start, snap.End = tr[0], tr[1]
	if sf.eqType != "" {
		snap.Type = sf.eqType
	}

	if sf.preset != "" {
		p := config.GetPreset(snap.Type, sf.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (see: odeviz presets %s)", sf.preset, snap.Type, snap.Type)
		}
		for k, v := range p.Params {
			snap.Controls[k] = v
		}
		snap.Initial = []float64{p.Y0, p.YP0}
		snap.Start, snap.End = p.TMin, p.TMax
	}

	for _, kv := range sf.params {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=value", kv)
		}
		k = strings.TrimSpace(k)
		if snap.Type == equation.Custom && (k == "equation" || k == "custom_equation") {
			k = "custom_equation"
		}
		snap.Controls[k] = v
	}

	flags := cmd.Flags()
	if flags.Changed("y0") {
		snap.Initial[0] = sf.y0
	}
	if flags.Changed("yp0") {
		snap.Initial[1] = sf.yp0
	}
	if flags.Changed("tmin") {
		snap.Start = sf.tMin
	}
	if flags.Changed("tmax") {
		snap.End = sf.tMax
	}
	return snap, nil
}

func printSummaries(cmd *cobra.Command, rows []archive.Summary) error {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "no simulations found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tCREATED\tPOINTS\tAMPLITUDE\tTAGS")
	for _, s := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.4f\t%s\n",
			s.ID,
			s.Name,
			s.EquationType,
			s.CreatedAt,
			s.PointsCount,
			s.Amplitude,
			strings.Join(s.Tags, ","),
		)
	}
	return w.Flush()
}

func printDisplay(cmd *cobra.Command, d *coordinator.Display) {
	out := cmd.OutOrStdout()
	md := d.Metadata
	title(out, fmt.Sprintf("#%d %s", md.ID, md.Name))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "type\t%s\n", md.EquationType)
	if expr, err := equation.Expression(md.EquationType, md.Parameters); err == nil {
		fmt.Fprintf(w, "equation\t%s\n", expr)
	}
	fmt.Fprintf(w, "parameters\t%s\n", formatParams(md.Parameters))
	fmt.Fprintf(w, "initial\t%v\n", md.InitialConditions)
	fmt.Fprintf(w, "t range\t[%g, %g]\n", md.TimeRange[0], md.TimeRange[1])
	fmt.Fprintf(w, "created\t%s\n", md.CreatedAt)
	fmt.Fprintf(w, "points\t%d\n", md.PointsCount)
	fmt.Fprintf(w, "max / min\t%.6f / %.6f\n", md.MaxValue, md.MinValue)
	fmt.Fprintf(w, "amplitude\t%.6f\n", md.Amplitude)
	fmt.Fprintf(w, "tags\t%s\n", strings.Join(md.Tags, ", "))
	if md.Description != "" {
		fmt.Fprintf(w, "description\t%s\n", md.Description)
	}
	w.Flush()
}

// formatParams prints a parameter map with sorted keys.
func formatParams[V any](params map[string]V) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
