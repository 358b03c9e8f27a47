package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newDaysCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "days",
		Short: "List the days that have calls, with counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, stop, err := loadInbox(cmd.Context(), rootOpts, 0)
			if err != nil {
				return err
			}
			defer stop()

			days := svc.Days()
			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, days)
			}

			bold := color.New(color.Bold).SprintFunc()
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold("DAY"), bold("CALLS"))
			for _, d := range days {
				tbl.AddRow(d.Day, strconv.Itoa(d.Count))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}
