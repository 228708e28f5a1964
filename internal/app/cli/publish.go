package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"submux/internal/broker"
	"submux/internal/pubsub"
)

func newPublishCommand(opts *globalOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "publish <channel> <message>",
		Short: "Publish a message to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := broker.NewBroker(cmd.Context(), BrokerConfig(opts.cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			timeout := opts.cfg.Mux.CommandTimeout
			if timeout <= 0 {
				timeout = pubsub.DefaultCommandTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			n, err := b.Publish(ctx, args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the receiver count")
	return cmd
}
