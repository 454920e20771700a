package main

import (
	"net/http"
	"os"

	"github.com/einherij/enterprise"
	"github.com/einherij/enterprise/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/einherij/cockpit/pkg/channel"
	"github.com/einherij/cockpit/pkg/commander"
	"github.com/einherij/cockpit/pkg/config"
	"github.com/einherij/cockpit/pkg/flightlog"
	"github.com/einherij/cockpit/pkg/panel"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "cockpit",
		Short: "Browser cockpit for a Tello drone backend",
		Long: "cockpit serves the browser control panel, keeps one telemetry\n" +
			"websocket to the drone backend and forwards flight commands to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			config.InitLogging(cfg.Logging)
			runService(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	root.AddCommand(newFlyCommand(&cfgPath))

	if err := root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func runService(cfg *config.Config) {
	app := enterprise.NewApplication()

	ch := channel.New(channel.Config{
		BackendURL:        cfg.Backend.URL,
		Reconnect:         cfg.Channel.Reconnect,
		ReconnectInterval: cfg.Channel.ReconnectInterval(),
	})
	app.RegisterRunner(ch)
	app.RegisterOnShutdown(func() {
		ch.Close()
		logrus.Warnf("telemetry channel closed")
	})

	cmdr := commander.New(cfg.Backend.URL, &http.Client{Timeout: cfg.Backend.Timeout()})

	store := flightlog.NewStore(cfg.Recording.Path)
	utils.PanicOnError(store.Open())
	app.RegisterOnShutdown(func() {
		if err := store.Close(); err != nil {
			logrus.Error(err)
		}
	})

	sub := ch.Subscribe()
	app.RegisterOnShutdown(sub.Close)
	recorder := flightlog.NewRecorder(store, sub.Snapshots())
	app.RegisterRunner(recorder)

	srv := panel.New(cfg.Panel.Listen, ch, cmdr, recorder)
	app.RegisterRunner(srv)

	app.Run()
}
