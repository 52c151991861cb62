package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tailcast/internal/logging"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort     = 30070
	defaultDebounce = 100 * time.Millisecond
)

type Config struct {
	Port           int
	Debounce       time.Duration
	CatchUp        bool
	LogLevel       logging.Level
	AllowedOrigins []string
	ConfigFile     string
	Verbose        bool
	Quiet          bool
	ShowVersion    bool
	Sources        map[string]configSource
}

type configSource string

const (
	sourceDefault configSource = "default"
	sourceFile    configSource = "file"
	sourceEnv     configSource = "env"
	sourceFlag    configSource = "flag"
	sourceArg     configSource = "arg"
)

// fileConfig is the optional YAML config file layout.
type fileConfig struct {
	Port           int      `yaml:"port"`
	Debounce       string   `yaml:"debounce"`
	CatchUp        *bool    `yaml:"catch_up"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type originList []string

func (o *originList) String() string {
	if o == nil {
		return ""
	}
	return strings.Join(*o, ",")
}

func (o *originList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			*o = append(*o, trimmed)
		}
	}
	return nil
}

type flagValues struct {
	Port           int
	Debounce       time.Duration
	CatchUp        bool
	ConfigFile     string
	AllowedOrigins originList
	Verbose        bool
	Quiet          bool
	Help           bool
	Version        bool
	Args           []string
	Set            map[string]bool
}

func loadConfig(args []string) (Config, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     defaultPort,
		Debounce: defaultDebounce,
		CatchUp:  true,
		LogLevel: logging.LevelInfo,
		Sources: map[string]configSource{
			"port":            sourceDefault,
			"debounce":        sourceDefault,
			"catch-up":        sourceDefault,
			"log-level":       sourceDefault,
			"allowed-origins": sourceDefault,
		},
		Verbose:     flags.Verbose,
		Quiet:       flags.Quiet,
		ShowVersion: flags.Version,
	}

	configFile := strings.TrimSpace(os.Getenv("TAILCAST_CONFIG"))
	if flags.Set["config"] {
		configFile = strings.TrimSpace(flags.ConfigFile)
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = configFile
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if flags.Set["port"] {
		if flags.Port <= 0 || flags.Port > 65535 {
			return Config{}, fmt.Errorf("invalid --port: must be between 1 and 65535")
		}
		cfg.Port = flags.Port
		cfg.Sources["port"] = sourceFlag
	}
	if flags.Set["debounce"] {
		if flags.Debounce <= 0 {
			return Config{}, fmt.Errorf("invalid --debounce: must be > 0")
		}
		cfg.Debounce = flags.Debounce
		cfg.Sources["debounce"] = sourceFlag
	}
	if flags.Set["catch-up"] {
		cfg.CatchUp = flags.CatchUp
		cfg.Sources["catch-up"] = sourceFlag
	}
	if flags.Set["allowed-origin"] {
		cfg.AllowedOrigins = append([]string(nil), flags.AllowedOrigins...)
		cfg.Sources["allowed-origins"] = sourceFlag
	}

	// The first positional argument is the port, as in `tailcast 8080`.
	if len(flags.Args) > 1 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args[1:], " "))
	}
	if len(flags.Args) == 1 {
		port, err := parsePort(flags.Args[0])
		if err != nil {
			return Config{}, fmt.Errorf("invalid port argument %q: %w", flags.Args[0], err)
		}
		cfg.Port = port
		cfg.Sources["port"] = sourceArg
	}

	if flags.Verbose {
		cfg.LogLevel = logging.LevelDebug
		cfg.Sources["log-level"] = sourceFlag
	} else if flags.Quiet {
		cfg.LogLevel = logging.LevelWarning
		cfg.Sources["log-level"] = sourceFlag
	}

	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values fileConfig
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if values.Port != 0 {
		if values.Port < 0 || values.Port > 65535 {
			return fmt.Errorf("config file %s: invalid port %d", path, values.Port)
		}
		cfg.Port = values.Port
		cfg.Sources["port"] = sourceFile
	}
	if values.Debounce != "" {
		debounce, err := parseDebounce(values.Debounce)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Debounce = debounce
		cfg.Sources["debounce"] = sourceFile
	}
	if values.CatchUp != nil {
		cfg.CatchUp = *values.CatchUp
		cfg.Sources["catch-up"] = sourceFile
	}
	if values.LogLevel != "" {
		level, ok := logging.ParseLevel(values.LogLevel)
		if !ok {
			return fmt.Errorf("config file %s: invalid log_level %q", path, values.LogLevel)
		}
		cfg.LogLevel = level
		cfg.Sources["log-level"] = sourceFile
	}
	if len(values.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string(nil), values.AllowedOrigins...)
		cfg.Sources["allowed-origins"] = sourceFile
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv("TAILCAST_PORT")); raw != "" {
		port, err := parsePort(raw)
		if err != nil {
			return fmt.Errorf("invalid TAILCAST_PORT %q: %w", raw, err)
		}
		cfg.Port = port
		cfg.Sources["port"] = sourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv("TAILCAST_DEBOUNCE")); raw != "" {
		debounce, err := parseDebounce(raw)
		if err != nil {
			return fmt.Errorf("invalid TAILCAST_DEBOUNCE: %w", err)
		}
		cfg.Debounce = debounce
		cfg.Sources["debounce"] = sourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv("TAILCAST_CATCH_UP")); raw != "" {
		catchUp, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid TAILCAST_CATCH_UP %q: %w", raw, err)
		}
		cfg.CatchUp = catchUp
		cfg.Sources["catch-up"] = sourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv("TAILCAST_LOG_LEVEL")); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return fmt.Errorf("invalid TAILCAST_LOG_LEVEL %q", raw)
		}
		cfg.LogLevel = level
		cfg.Sources["log-level"] = sourceEnv
	}
	return nil
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, errors.New("must be between 1 and 65535")
	}
	return port, nil
}

func parseDebounce(raw string) (time.Duration, error) {
	debounce, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", raw, err)
	}
	if debounce <= 0 {
		return 0, fmt.Errorf("invalid debounce %q: must be > 0", raw)
	}
	return debounce, nil
}

func parseFlags(args []string) (flagValues, error) {
	if args == nil {
		args = []string{}
	}
	fs := flag.NewFlagSet("tailcast", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	values := flagValues{}
	fs.IntVar(&values.Port, "port", defaultPort, "HTTP port")
	fs.DurationVar(&values.Debounce, "debounce", defaultDebounce, "Coalescing window for file change events")
	fs.BoolVar(&values.CatchUp, "catch-up", true, "Deliver pending content as soon as a viewer subscribes")
	fs.StringVar(&values.ConfigFile, "config", "", "YAML config file")
	fs.Var(&values.AllowedOrigins, "allowed-origin", "Extra websocket origin to accept (repeatable)")
	fs.BoolVar(&values.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&values.Quiet, "quiet", false, "Reduce logging to warnings")
	fs.BoolVar(&values.Help, "help", false, "Show help")
	fs.BoolVar(&values.Help, "h", false, "Show help")
	fs.BoolVar(&values.Version, "version", false, "Print version and exit")
	fs.BoolVar(&values.Version, "v", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return flagValues{}, err
	}
	values.Args = fs.Args()
	values.Set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		values.Set[f.Name] = true
	})

	if values.Help {
		printHelp(os.Stdout)
		return values, flag.ErrHelp
	}
	return values, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: tailcast [options] [port]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Serve the files of the current directory and follow them live in the browser.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintf(out, "  --port PORT            HTTP port (env: TAILCAST_PORT, default: %d)\n", defaultPort)
	fmt.Fprintf(out, "  --debounce DURATION    Change coalescing window (env: TAILCAST_DEBOUNCE, default: %s)\n", defaultDebounce)
	fmt.Fprintln(out, "  --catch-up BOOL        Deliver backlog on subscribe (env: TAILCAST_CATCH_UP, default: true)")
	fmt.Fprintln(out, "  --config PATH          YAML config file (env: TAILCAST_CONFIG)")
	fmt.Fprintln(out, "  --allowed-origin HOST  Extra websocket origin, repeatable")
	fmt.Fprintln(out, "  --verbose              Debug logging")
	fmt.Fprintln(out, "  --quiet                Warnings and errors only")
	fmt.Fprintln(out, "  -h, --help             Show help")
	fmt.Fprintln(out, "  -v, --version          Print version and exit")
}

func logStartupConfig(logger *logging.Logger, cfg Config) {
	logger.Debug("startup config", map[string]string{
		"port":                   strconv.Itoa(cfg.Port),
		"port.source":            string(cfg.Sources["port"]),
		"debounce":               cfg.Debounce.String(),
		"debounce.source":        string(cfg.Sources["debounce"]),
		"catch_up":               strconv.FormatBool(cfg.CatchUp),
		"catch_up.source":        string(cfg.Sources["catch-up"]),
		"log_level":              string(cfg.LogLevel),
		"log_level.source":       string(cfg.Sources["log-level"]),
		"allowed_origins":        strings.Join(cfg.AllowedOrigins, ","),
		"allowed_origins.source": string(cfg.Sources["allowed-origins"]),
		"config_file":            cfg.ConfigFile,
	})
}
