package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmathy/carlink/app"
	"github.com/kmathy/carlink/config"
	"github.com/kmathy/carlink/core/model"
)

var vehicleCmd = &cobra.Command{
	Use:   "vehicle",
	Short: "Vehicle related commands",
}

var vehicleRefreshCmd = &cobra.Command{
	Use:   "refresh <vin> <domain>",
	Short: "Fetch fresh data for one vehicle domain and print it",
	Args:  cobra.ExactArgs(2),
	RunE:  runVehicleRefresh,
}

var vehicleCommandCmd = &cobra.Command{
	Use:   "run <vin> <operation>",
	Short: "Issue a command and wait for its bus-reported outcome",
	Args:  cobra.ExactArgs(2),
	RunE:  runVehicleCommand,
}

func init() {
	vehicleCmd.AddCommand(vehicleRefreshCmd)
	vehicleCmd.AddCommand(vehicleCommandCmd)
	rootCmd.AddCommand(vehicleCmd)
}

func runVehicleRefresh(cmd *cobra.Command, args []string) error {
	vin, domain := args[0], model.Domain(args[1])
	if !domain.Valid() {
		return fmt.Errorf("unknown domain %q", domain)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	done := make(chan struct{}, 1)
	handle := svc.Coordinator.SubscribeUpdates(vin, func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer svc.Coordinator.UnsubscribeUpdates(handle)

	svc.Coordinator.RequestRefresh(vin, domain)
	select {
	case <-done:
	case <-time.After(time.Duration(cfg.API.TimeoutSeconds+5) * time.Second):
		return fmt.Errorf("timed out waiting for refresh")
	}
	snap, ok := svc.Coordinator.Garage().Get(vin, domain)
	if !ok {
		return fmt.Errorf("refresh failed, no data cached for %s/%s", vin, domain)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(snap.Data))
	return nil
}

func runVehicleCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vin, opName := args[0], args[1]
	spec, ok := commandByName(opName)
	if !ok {
		return fmt.Errorf("unknown operation %q", opName)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Coordinator.RunCommand(ctx, vin, spec)
	if err != nil {
		return err
	}
	if res.ErrorCode != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", res.Status, res.ErrorCode)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), res.Status)
	}
	return nil
}

func commandByName(name string) (model.CommandSpec, bool) {
	switch name {
	case "start-charging":
		return model.StartCharging(), true
	case "stop-charging":
		return model.StopCharging(), true
	case "stop-air-conditioning":
		return model.StopAirConditioning(), true
	case "start-window-heating":
		return model.StartWindowHeating(), true
	case "stop-window-heating":
		return model.StopWindowHeating(), true
	case "honk-and-flash":
		return model.HonkAndFlash(), true
	case "wakeup":
		return model.Wakeup(), true
	}
	return model.CommandSpec{}, false
}
