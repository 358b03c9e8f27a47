package main

import (
	"fmt"
	"io"
	"os"

	"call-inbox/internal/calls"
	"call-inbox/internal/push"
	"call-inbox/pkg/utils"

	"github.com/spf13/cobra"
)

type publishOptions struct {
	RedisAddr string
	Channel   string
	File      string
}

// newPublishCommand sends one call.changed message, for exercising a
// running API's push path by hand.
func newPublishCommand() *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a call record on the Redis push channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), opts.File)
			if err != nil {
				return err
			}
			rec, err := calls.Decode(raw)
			if err != nil {
				return err
			}
			if err := rec.Validate(); err != nil {
				return err
			}

			rdb, err := utils.OpenRedis(cmd.Context(), utils.RedisConfig{Addr: opts.RedisAddr})
			if err != nil {
				return err
			}
			defer rdb.Close()

			if err := push.NewPublisher(rdb, opts.Channel).Publish(cmd.Context(), rec); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", rec.ID)
			return err
		},
	}

	defaultAddr := "localhost:6379"
	if h := os.Getenv("REDIS_HOST"); h != "" {
		defaultAddr = h + ":" + envOr("REDIS_PORT", "6379")
	}
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", defaultAddr, "redis address")
	cmd.Flags().StringVar(&opts.Channel, "channel", envOr("PUSH_CHANNEL", push.DefaultChannel), "pub/sub channel")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "call JSON file, - for stdin")

	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
