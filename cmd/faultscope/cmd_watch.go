package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/faultscope/faultscope/pkg/natsutil"
)

func newWatchCmd() *cobra.Command {
	var flags struct {
		url      string
		subjects []string
	}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print analysis and canvas events published by the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), flags.url, flags.subjects, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.url, "nats-url", "nats://localhost:4222", "NATS server URL")
	f.StringSliceVar(&flags.subjects, "subjects", []string{natsutil.SubjectAnalysis, natsutil.SubjectCanvas}, "Subjects to follow")
	return cmd
}

// watch prints one "<subject> <json>" line per event until ctx is done.
func watch(ctx context.Context, url string, subjects []string, out, status io.Writer) error {
	nc, err := natsutil.Connect(url, "faultscope-watch")
	if err != nil {
		return err
	}
	defer nc.Close()

	var mu sync.Mutex
	for _, subject := range subjects {
		sub, err := natsutil.Subscribe(nc, subject, func(_ context.Context, ev json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s %s\n", subject, ev)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		defer sub.Unsubscribe()
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(status, "watching %v on %s\n", subjects, url)

	<-ctx.Done()
	return nil
}
