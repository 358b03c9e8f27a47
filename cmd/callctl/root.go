package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"call-inbox/internal/inbox"
	"call-inbox/internal/store"
	"call-inbox/internal/upstream"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	BaseURL string
	Token   string
	Limit   int
	Timeout time.Duration
	Format  string // "text" | "json" | "yaml"
}

var validFormats = []string{"text", "json", "yaml"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "callctl",
		Short:         "Inspect the call inbox from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", os.Getenv("UPSTREAM_BASE_URL"), "upstream API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("UPSTREAM_TOKEN"), "upstream bearer token")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", upstream.DefaultFetchLimit, "records to fetch")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "upstream request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newDaysCommand(opts))
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newPublishCommand())

	return cmd
}

// loadInbox fetches once from upstream into a private store and returns
// the service plus a function that stops its intake.
func loadInbox(ctx context.Context, opts *rootOptions, pageSize int) (*inbox.Service, func(), error) {
	if opts.BaseURL == "" {
		return nil, nil, fmt.Errorf("--base-url or UPSTREAM_BASE_URL is required")
	}

	in := store.NewIntake(store.New(), 4)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = in.Run(runCtx)
	}()
	stop := func() {
		cancel()
		<-done
	}

	client := upstream.NewClient(opts.BaseURL, opts.Token, opts.Timeout)
	svc := inbox.NewService(client, in, inbox.Options{FetchLimit: opts.Limit, PageSize: pageSize})
	if _, err := svc.Refresh(ctx); err != nil {
		stop()
		return nil, nil, err
	}
	return svc, stop, nil
}
