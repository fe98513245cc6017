package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jackielii/heritage/internal/config"
)

// app carries the loaded configuration to subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	defaults := config.Defaults()

	root := &cobra.Command{
		Use:           "heritage",
		Short:         "Tatarstan cultural heritage portal",
		Long:          `Serves an informational page about Tatarstan: landmarks, culture, a song with audio playback, a folk tale and a QR code linking back to the page.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.String("content", defaults.ContentPath, "catalog YAML overriding the embedded one")
	flags.String("public-url", defaults.PublicURL, "address encoded into the QR code")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("content_path", flags.Lookup("content"))
	_ = a.v.BindPFlag("public_url", flags.Lookup("public-url"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCmd(a),
		newQRCmd(a),
		newRoutesCmd(a),
		newContentCmd(a),
	)
	return root
}
