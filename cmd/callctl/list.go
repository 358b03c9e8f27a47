package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"call-inbox/internal/calls"
	"call-inbox/internal/inbox"
	"call-inbox/internal/view"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type listOptions struct {
	Grouped   bool
	Day       string
	CallType  string
	Direction string
	Page      int
	PageSize  int
}

func newListCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch calls and print one page",
		Long: `Fetch calls from the upstream API and print one page of the
filtered view. With --grouped and --day only that day's calls are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.query()
			if err != nil {
				return err
			}
			svc, stop, err := loadInbox(cmd.Context(), rootOpts, opts.PageSize)
			if err != nil {
				return err
			}
			defer stop()

			res := svc.View(q)
			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, res)
			}
			writeCallsTable(cmd.OutOrStdout(), res, opts.PageSize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Grouped, "grouped", false, "group by day")
	cmd.Flags().StringVar(&opts.Day, "day", "", "selected day (YYYY-MM-DD), used with --grouped")
	cmd.Flags().StringVar(&opts.CallType, "type", "", "call type filter (answered|missed|voicemail|unknown)")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "direction filter (inbound|outbound)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", view.DefaultPageSize, "calls per page")

	return cmd
}

func (o *listOptions) query() (inbox.Query, error) {
	q := inbox.Query{Mode: view.ModeUngrouped, PageSize: o.PageSize}
	if o.Grouped {
		q.Mode = view.ModeGroupedByDay
	}
	if o.Day != "" {
		if _, err := calls.ParseDay(o.Day); err != nil {
			return q, err
		}
		q.Day = o.Day
	}
	if o.CallType != "" {
		if calls.ParseCallType(o.CallType) != calls.CallType(o.CallType) {
			return q, fmt.Errorf("invalid --type %q", o.CallType)
		}
		q.Filters.CallType = calls.CallType(o.CallType)
	}
	if o.Direction != "" {
		d := calls.Direction(o.Direction)
		if !d.Valid() {
			return q, fmt.Errorf("invalid --direction %q", o.Direction)
		}
		q.Filters.Direction = d
	}
	page := o.Page
	q.Page = &page
	return q, nil
}

func writeCallsTable(w io.Writer, res inbox.Result, pageSize int) {
	bold := color.New(color.Bold).SprintFunc()
	missed := color.New(color.FgRed).SprintFunc()

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold("ID"), bold("DAY"), bold("TYPE"), bold("DIRECTION"), bold("NUMBER"), bold("DURATION"), bold("ARCHIVED"), bold("NOTES"))
	for _, c := range res.Visible {
		ct := string(c.CallType)
		if c.CallType == calls.CallTypeMissed {
			ct = missed(ct)
		}
		tbl.AddRow(c.ID, c.Day(), ct, string(c.Direction), c.Counterparty(), c.DurationString(), yesNo(c.IsArchived), strconv.Itoa(len(c.Notes)))
	}
	_, _ = fmt.Fprintln(w, tbl)

	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	page := 0
	if res.PageCount > 0 {
		page = res.CorrectedOffset/pageSize + 1
	}
	_, _ = fmt.Fprintf(w, "\n%d calls, page %d of %d\n", res.Total, page, res.PageCount)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// writeStructured prints v as JSON or YAML. YAML goes through JSON first so
// both formats share the API field names.
func writeStructured(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}
