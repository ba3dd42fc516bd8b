package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"catalogexplorer/internal/catalog"
	"catalogexplorer/internal/index"
	"catalogexplorer/internal/transfer"
	"catalogexplorer/pkg/domain"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			infos := a.reg.List()
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Name,
					string(info.Kind),
					string(info.Origin),
					strconv.Itoa(info.Size),
					info.Location,
				})
			}
			printTable(out, []string{"catalog", "kind", "origin", "size", "location"}, rows)
			for _, info := range infos {
				if info.Warning != "" {
					printWarning(out, info.Name+": "+info.Warning)
				}
			}
			return nil
		},
	}
}

func (a *app) groupCmd() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "group <catalog>",
		Short: "Show group keys and sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if by != "" {
				if _, err := c.UpdateView(cmd.Context(), catalog.ViewUpdate{GroupKey: &by}); err != nil {
					return err
				}
			}
			d := c.Describe()
			if d.GroupBy != "" {
				printTitle(out, fmt.Sprintf("%s grouped by %s", c.Name(), d.GroupBy))
			} else {
				printTitle(out, c.Name())
			}
			rows := make([][]string, 0, len(d.GroupKeys))
			for _, k := range d.GroupKeys {
				rows = append(rows, []string{k, strconv.Itoa(d.Counts[k])})
			}
			printTable(out, []string{"group", "count"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "table column to group by")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var class, mode string
	cmd := &cobra.Command{
		Use:   "search <catalog> [query...]",
		Short: "Filter a catalog and print the matches",
		Long: `search filters a catalog with a case-insensitive query. Every whitespace
separated token must appear somewhere in a match. --class narrows modules to one
class, or a table to one group of its grouping key. The query is remembered.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")
			upd := catalog.ViewUpdate{Query: &query}
			if cmd.Flags().Changed("class") {
				upd.Class = &class
			}
			if cmd.Flags().Changed("mode") {
				upd.Mode = &mode
			}
			st, err := c.UpdateView(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return a.printMatches(cmd, c, st)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "module class or table group to narrow to")
	cmd.Flags().StringVar(&mode, "mode", "", "compat side to search: projects or kits")
	return cmd
}

func (a *app) printMatches(cmd *cobra.Command, c *catalog.Catalog, st catalog.ViewState) error {
	out := cmd.OutOrStdout()
	switch c.Kind() {
	case domain.KindTable:
		recs, err := c.Records(st.Query, st.Class)
		if err != nil {
			return err
		}
		cols := c.Describe().Columns
		printTable(out, cols, transfer.TableRows(recs, cols))
		printNote(out, "%d of %d records", len(recs), c.Info().Size)
	case domain.KindModules:
		mods, err := c.Modules(st.Query, st.Class)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(mods))
		for _, m := range mods {
			rows = append(rows, []string{m.Module, m.Class, strconv.Itoa(len(m.Config)), strings.Join(m.ParamTypes(), ", ")})
		}
		printTable(out, []string{"module", "class", "params", "types"}, rows)
		printNote(out, "%d of %d modules", len(mods), c.Info().Size)
	default:
		names, err := c.CompatNames(st.Mode, st.Query)
		if err != nil {
			return err
		}
		printNames(out, st.Mode, names)
	}
	return nil
}

func (a *app) compatCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "compat <catalog> <projects|kits> [name]",
		Short: "Browse the project/kit compatibility index",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog(args[0])
			if err != nil {
				return err
			}
			mode, ok := index.ParseMode(args[1])
			if !ok || string(mode) != args[1] {
				return fmt.Errorf("unknown compat mode %q (want projects or kits)", args[1])
			}
			m := string(mode)
			upd := catalog.ViewUpdate{Mode: &m}
			if cmd.Flags().Changed("q") {
				upd.Query = &query
			}
			picked := ""
			if len(args) == 3 {
				picked = args[2]
			}
			upd.Picked = &picked
			st, err := c.UpdateView(cmd.Context(), upd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if st.Picked == "" {
				names, err := c.CompatNames(st.Mode, st.Query)
				if err != nil {
					return err
				}
				printNames(out, st.Mode, names)
				return nil
			}
			d, err := c.CompatDetail(st.Mode, st.Picked)
			if err != nil {
				return err
			}
			printDetail(cmd, d)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "q", "", "filter names")
	return cmd
}

func printNames(w io.Writer, mode index.Mode, names []catalog.NameCount) {
	counterpart := "kits"
	if mode == index.ModeKits {
		counterpart = "projects"
	}
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n.Name, strconv.Itoa(n.Count)})
	}
	printTable(w, []string{string(mode), counterpart}, rows)
}

func printDetail(cmd *cobra.Command, d catalog.Detail) {
	out := cmd.OutOrStdout()
	title := d.Name
	if d.KitRoot != "" {
		title += " (" + d.KitRoot + ")"
	}
	printTitle(out, title)
	rows := make([][]string, 0, len(d.Counterparts))
	for _, cp := range d.Counterparts {
		urls := make([]string, 0, len(cp.Links))
		for _, l := range cp.Links {
			urls = append(urls, l.Label+" "+l.Github)
		}
		rows = append(rows, []string{cp.Name, strings.Join(urls, "\n")})
	}
	header := "kit"
	if d.Mode == index.ModeKits {
		header = "project"
	}
	printTable(out, []string{header, "examples"}, rows)
}
