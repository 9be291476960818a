package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/config"
	"github.com/riders-api/riders/queue"
)

var consumeLimit int

var consumeCmd = &cobra.Command{
	Use:   "consume <queue>",
	Short: "Print messages from a queue",
	Long: `Consume messages from a queue and print their bodies, one per line.

The queue is declared if it does not exist. Messages are acknowledged once
printed. Stop with Ctrl-C; unprocessed prefetched messages are requeued.`,
	Args: cobra.ExactArgs(1),
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().IntVarP(&consumeLimit, "limit", "n", 0, "stop after n messages (0: run until interrupted)")
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	client, err := connectBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()
	printBody := func(_ context.Context, msg queue.Message) error {
		_, err := fmt.Fprintln(out, string(msg.Body))
		return err
	}

	received := 0
	for msg, err := range client.Consume(ctx, args[0], printBody) {
		if err != nil {
			var handlerErr *queue.HandlerError
			if errors.As(err, &handlerErr) {
				slog.Warn("message requeued", "queue", args[0], "err", err)
				continue
			}
			return fmt.Errorf("consume %s: %w", args[0], err)
		}

		received++
		slog.Debug("message received", "queue", args[0], "routing_key", msg.RoutingKey, "redelivered", msg.Redelivered)
		if consumeLimit > 0 && received >= consumeLimit {
			break
		}
	}

	slog.Info("consumer stopped", "queue", args[0], "messages", received)
	return nil
}
