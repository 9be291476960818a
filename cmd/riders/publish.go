package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/config"
	"github.com/riders-api/riders/metrics"
	"github.com/riders-api/riders/queue"
)

var publishExchange string

var publishCmd = &cobra.Command{
	Use:   "publish <routing-key> [body]",
	Short: "Publish a message to the broker",
	Long: `Publish one message. The body is read from stdin when omitted.

With publisher confirms enabled (amqp.confirm, the default) the command fails
when the broker cannot route the message.

Examples:
  riders publish storage.events '{"type":"ping"}'
  echo hello | riders publish --exchange rides rides.created`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishExchange, "exchange", "e", "", "exchange to publish to (default: the default exchange)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	body, err := messageBody(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	client, err := connectBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.PublishTo(ctx, publishExchange, args[0], body); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	slog.Info("message published", "exchange", publishExchange, "routing_key", args[0], "bytes", len(body))
	return nil
}

func messageBody(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) > 1 {
		return []byte(args[1]), nil
	}
	body, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func connectBroker(ctx context.Context, cfg *config.Config) (*queue.Client, error) {
	if cfg.AMQP.URL == "" {
		return nil, errors.New("amqp.url is not set (env: AMQP_URL)")
	}
	client, err := openQueue(ctx, cfg, metrics.NewCollector())
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return client, nil
}

