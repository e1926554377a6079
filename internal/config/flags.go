package config

import "github.com/spf13/pflag"

// Flags holds the command-line overrides. Commands add it to their own
// flag set.
var Flags = pflag.NewFlagSet("meshpreview", pflag.ContinueOnError)

var (
	flagConfig   = Flags.String("config", "", "Path to config file")
	flagEnv      = Flags.String("env", ".env", "Path to .env file with source credentials")
	flagDebug    = Flags.Bool("debug", false, "Enable debug logging")
	flagLogFile  = Flags.String("log-file", "", "Write logs to this file")
	flagAddr     = Flags.String("addr", "", "HTTP listen address")
	flagWidth    = Flags.Int("width", 0, "Render width")
	flagHeight   = Flags.Int("height", 0, "Render height")
	flagFileRoot = Flags.String("file-root", "", "Directory served for file:// URLs")
)

// ParseFlags parses command-line flags. Call this early in main() when
// not running under cobra.
func ParseFlags(args []string) error {
	return Flags.Parse(args)
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagWidth > 0 {
		cfg.Render.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Render.Height = *flagHeight
	}
	if *flagFileRoot != "" {
		cfg.Sources.FileRoot = *flagFileRoot
	}
}
