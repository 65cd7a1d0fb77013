package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kmathy/carlink/app"
	"github.com/kmathy/carlink/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every decoded bus event",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	events := svc.Coordinator.SubscribeEvents()
	defer svc.Coordinator.UnsubscribeEvents(events)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			line := fmt.Sprintf("%s %s %s", ev.Timestamp.Format("15:04:05"), ev.VIN, ev.Kind)
			switch {
			case ev.Operation != nil:
				line += fmt.Sprintf(" %s %s", ev.Operation.Operation, ev.Operation.Status)
			case ev.Service != nil:
				line += " " + ev.Service.Topic
			case ev.Account != nil:
				line += " " + ev.Account.Topic
			case ev.Vehicle != nil:
				line += " " + ev.Vehicle.Topic
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		case <-ctx.Done():
			return nil
		}
	}
}
