package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/internal/events"
	"github.com/alfredjeanlab/dynfilter/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:               "watch",
	Short:             "Print filter update and reset events as they happen",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		only, _ := cmd.Flags().GetString("filter")
		if natsURL == "" {
			return fmt.Errorf("--nats or DYNFILTER_NATS_URL is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		topic := events.TopicAll
		if only != "" {
			topic = events.FilterTopic(only)
		}
		return watchEvents(ctx, sub, topic, func(msg events.Message) {
			printEvent(cmd, msg)
		})
	},
}

// watchEvents hands every event matching topic to handle until ctx is done
// or the subscription ends.
func watchEvents(ctx context.Context, sub events.Subscriber, topic string, handle func(events.Message)) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg)
		}
	}
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("DYNFILTER_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("filter", "", "only show events for this filter")
}

func printEvent(cmd *cobra.Command, msg events.Message) {
	ev, err := msg.Decode()
	if err != nil {
		log.Printf("skipping event: %v", err)
		return
	}

	var sess string
	var values map[string]any
	switch e := ev.(type) {
	case events.FilterUpdated:
		sess, values = e.Session, e.Values
	case events.FilterReset:
		sess, values = e.Session, e.Values
	}
	if jsonOutput {
		_ = printJSON(map[string]any{"kind": msg.Kind(), "event": ev})
		return
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %-7s %s %s\n",
		ui.RenderMuted(time.Now().Format("15:04:05")), msg.Kind(), ui.RenderFilter(ev.FilterName()), ui.RenderMuted(sess))
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(out, "  %s = %s\n", ui.RenderKey(key), formatValue(values[key]))
	}
}
