package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/api/handlers"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/tracker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ambulance-dispatch-api",
		Short: "Ambulance dispatch and real-time tracking",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(trackCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch API and the real-time gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func trackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Report this vehicle's position to the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.New()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			url, _ := flags.GetString("url")
			token, _ := flags.GetString("token")
			vehicle, _ := flags.GetString("vehicle")
			position, _ := flags.GetString("position")
			file, _ := flags.GetString("position-file")
			interval, _ := flags.GetDuration("interval")

			if url == "" {
				url = fmt.Sprintf("ws://localhost:%s/ws", conf.Port)
			}
			if token == "" {
				token = os.Getenv("CREW_TOKEN")
			}
			if interval <= 0 {
				interval = conf.TrackerInterval
			}
			if vehicle == "" || token == "" {
				return errors.New("--vehicle and --token (or CREW_TOKEN) are required")
			}

			var source tracker.PositionSource
			switch {
			case file != "":
				source = tracker.FileSource(file)
			case position != "":
				c, err := tracker.Decode(position)
				if err != nil {
					return fmt.Errorf("invalid --position %q: %w", position, err)
				}
				source = tracker.StaticSource(c)
			default:
				return errors.New("one of --position or --position-file is required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			reporter := tracker.NewReporter(tracker.ReporterConfig{
				URL:       url,
				Token:     token,
				VehicleID: vehicle,
				Interval:  interval,
			}, source)
			return reporter.Run(ctx)
		},
	}
	cmd.Flags().String("url", "", "gateway websocket URL (default ws://localhost:$PORT/ws)")
	cmd.Flags().String("token", "", "crew credential (default $CREW_TOKEN)")
	cmd.Flags().String("vehicle", "", "id of the vehicle being crewed")
	cmd.Flags().String("position", "", `fixed position as "lat,lng"`)
	cmd.Flags().String("position-file", "", `file holding the current "lat,lng" position`)
	cmd.Flags().Duration("interval", 0, "report interval (default $TRACKER_INTERVAL)")
	return cmd
}

func runServer() error {
	conf, err := config.New()
	if err != nil {
		return err
	}
	a := handlers.App{Config: *conf}

	// initialize database and router
	if err := a.Initialize(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infow("ambulance-dispatch-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.S().Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.S().Errorw("server shutdown failed", "error", err)
	}
	a.Close(ctx)
	zap.S().Info("server stopped")
	return nil
}
