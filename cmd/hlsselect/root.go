package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/eleven-am/hlsselect"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hlsselect",
	Short: "Pick the fastest HLS mirror and strip ads from its playlists",
	Long: `hlsselect probes candidate mirrors of an HLS stream, scores them on
resolution, throughput, latency and stability, and rewrites media playlists
without their advertisement segments.

Every flag can also be set through the environment with the HLSSELECT_
prefix (for example HLSSELECT_PING_THRESHOLD=500ms), a .env file in the
working directory, or a config file passed with --config.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.Duration("ping-threshold", 800*time.Millisecond, "discard sources pinging slower than this")
	flags.Duration("ping-timeout", time.Second, "timeout of each ping")
	flags.Duration("probe-timeout", 8*time.Second, "timeout of each full probe")
	flags.Duration("playlist-timeout", 8*time.Second, "timeout of playlist downloads")
	flags.Int("max-probe-rate", 0, "maximum full probes started per second (0 = unlimited)")
	flags.Bool("no-decoder", false, "never run ffprobe to learn resolutions")

	_ = viper.BindPFlags(flags)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	viper.SetEnvPrefix("HLSSELECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return viper.BindPFlags(cmd.Flags())
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newController() *hlsselect.Controller {
	logger := newLogger()

	return hlsselect.NewController(hlsselect.Options{
		Logger:          &logger,
		DisableDecoder:  viper.GetBool("no-decoder"),
		SequentialProbe: viper.GetBool("sequential"),
		DisableAdFilter: viper.GetBool("no-adfilter"),
		RegexFilter:     viper.GetString("regex"),
		PingThreshold:   viper.GetDuration("ping-threshold"),
		PingTimeout:     viper.GetDuration("ping-timeout"),
		ProbeTimeout:    viper.GetDuration("probe-timeout"),
		PlaylistTimeout: viper.GetDuration("playlist-timeout"),
		MaxProbeRate:    viper.GetInt("max-probe-rate"),
	})
}
