package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	bot          bool
	botRoom      string
	fuse         time.Duration
	idleKick     time.Duration
	idleWarning  time.Duration
	port         int
	prefix       string
	profile      bool
	reapInterval time.Duration
	roomCapacity int
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roomCapacity < 1 {
		return fmt.Errorf("invalid room capacity (must be at least 1): %d", c.roomCapacity)
	}
	if c.fuse <= 0 {
		return fmt.Errorf("invalid fuse duration: %s", c.fuse)
	}
	if c.reapInterval <= 0 {
		return fmt.Errorf("invalid reap interval: %s", c.reapInterval)
	}
	if c.idleWarning >= c.idleKick {
		return fmt.Errorf("--idle-warning (%s) must be shorter than --idle-kick (%s)", c.idleWarning, c.idleKick)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("STRIKEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "strikebox",
		Short:         "An authoritative relay server for browser FPS rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServeGame(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: STRIKEBOX_BIND)")
	fs.BoolVar(&cfg.bot, "bot", false, "run a liveness bot that keeps --bot-room populated (env: STRIKEBOX_BOT)")
	fs.StringVar(&cfg.botRoom, "bot-room", "lobby", "room the liveness bot joins (env: STRIKEBOX_BOT_ROOM)")
	fs.DurationVar(&cfg.fuse, "fuse", 45*time.Second, "time between bomb plant and explosion (env: STRIKEBOX_FUSE)")
	fs.DurationVar(&cfg.idleKick, "idle-kick", 120*time.Second, "inactivity before a player is disconnected (env: STRIKEBOX_IDLE_KICK)")
	fs.DurationVar(&cfg.idleWarning, "idle-warning", 110*time.Second, "inactivity before a player is warned (env: STRIKEBOX_IDLE_WARNING)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: STRIKEBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: STRIKEBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: STRIKEBOX_PROFILE)")
	fs.DurationVar(&cfg.reapInterval, "reap-interval", time.Second, "how often idle players are checked (env: STRIKEBOX_REAP_INTERVAL)")
	fs.IntVar(&cfg.roomCapacity, "room-capacity", 5, "maximum non-bot players per room (env: STRIKEBOX_ROOM_CAPACITY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: STRIKEBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: STRIKEBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: STRIKEBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: STRIKEBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("strikebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
