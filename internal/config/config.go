// Package config resolves run configuration from flags, environment and the
// API key file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/breatheroute/getaq/internal/airquality"
	"github.com/breatheroute/getaq/internal/airquality/purpleair"
)

// Configuration errors.
var (
	ErrEmptyAPIKey   = errors.New("api key is empty")
	ErrInvalidMaxAge = errors.New("max age must be non-negative")
	ErrInvalidField  = errors.New("invalid sensor field")
	ErrInvalidRate   = errors.New("rate limit must be non-negative")
	ErrAPIKey        = errors.New("cannot resolve api key")
)

// Defaults for the query region (Pittsburgh, PA) and the run.
const (
	DefaultNWLat   = 40.506830
	DefaultNWLng   = -80.088923
	DefaultSELat   = 40.378196
	DefaultSELng   = -79.852636
	DefaultMaxAge  = 60 * 60
	DefaultKeyFile = ".api_key"
	DefaultTimeout = 30 * time.Second

	DefaultOTLPEndpoint = "localhost:4317"
)

// Config is the resolved configuration for one run.
type Config struct {
	Query airquality.Query

	APIKey  string
	KeyFile string

	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
	RateLimit  float64

	LogLevel    zerolog.Level
	Environment string

	Telemetry TelemetryConfig
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// Development reports whether logs should be human-readable.
func (c Config) Development() bool {
	return c.Environment == "development"
}

// LoadDotEnv loads variables from a .env file without overriding the
// existing environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load parses args and environment into a Config. getenv is usually os.Getenv.
// Usage and parse errors are written to output. flag.ErrHelp is returned
// unchanged when -h is given.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	flags := flag.NewFlagSet("getaq", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprintln(output, "Fetch PurpleAir API data for a bounded region and calculate the EPA IAQI.")
		fmt.Fprintln(output, "Outputs the result to STDOUT as line-delimited JSON.")
		fmt.Fprintln(output)
		flags.PrintDefaults()
	}

	nwlat := flags.Float64("nwlat", DefaultNWLat, "The northwest bounding box latitude.")
	nwlng := flags.Float64("nwlng", DefaultNWLng, "The northwest bounding box longitude.")
	selat := flags.Float64("selat", DefaultSELat, "The southeast bounding box latitude.")
	selng := flags.Float64("selng", DefaultSELng, "The southeast bounding box longitude.")
	maxAge := flags.Int("maxage", DefaultMaxAge, "Only get results from sensors updated in this past number of seconds.")
	keyFile := flags.String("keyfile", DefaultKeyFile, "Path to a file containing the API key.")
	apiKey := flags.String("apikey", "", "An API key. If specified, overrides --keyfile (env PURPLEAIR_API_KEY).")
	fields := flags.String("fields", strings.Join(airquality.DefaultFields, ","), "Comma-separated sensor fields to request.")
	baseURL := flags.String("base-url", getEnvOrDefault(getenv, "PURPLEAIR_BASE_URL", purpleair.DefaultBaseURL), "Sensor-listing endpoint.")
	timeout := flags.Duration("timeout", DefaultTimeout, "HTTP request timeout.")
	retries := flags.Uint64("retries", 0, "Retries on network errors and 5xx responses.")
	rateLimit := flags.Float64("rate-limit", 0, "Maximum API requests per second, retries included (0 for no limit).")
	logLevel := flags.String("log-level", getEnvOrDefault(getenv, "LOG_LEVEL", "info"), "Log level (debug, info, warn, error).")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if flags.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	if *maxAge < 0 {
		return Config{}, fmt.Errorf("%w: %d", ErrInvalidMaxAge, *maxAge)
	}

	if *rateLimit < 0 {
		return Config{}, fmt.Errorf("%w: %g", ErrInvalidRate, *rateLimit)
	}

	fieldList, err := ParseFields(*fields)
	if err != nil {
		return Config{}, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(*logLevel)))
	if err != nil || level == zerolog.NoLevel {
		return Config{}, fmt.Errorf("invalid log level %q", *logLevel)
	}

	explicitKey := *apiKey
	if explicitKey == "" {
		explicitKey = getenv("PURPLEAIR_API_KEY")
	}
	key, err := ResolveAPIKey(explicitKey, *keyFile)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrAPIKey, err)
	}

	otelEnabled, _ := strconv.ParseBool(getenv("OTEL_ENABLED"))

	return Config{
		Query: airquality.Query{
			Box: airquality.BoundingBox{
				NWLat: *nwlat,
				NWLng: *nwlng,
				SELat: *selat,
				SELng: *selng,
			},
			MaxAge:       *maxAge,
			LocationType: airquality.LocationOutside,
			Fields:       fieldList,
		},
		APIKey:      key,
		KeyFile:     *keyFile,
		BaseURL:     *baseURL,
		Timeout:     *timeout,
		MaxRetries:  *retries,
		RateLimit:   *rateLimit,
		LogLevel:    level,
		Environment: getEnvOrDefault(getenv, "APP_ENV", "production"),
		Telemetry: TelemetryConfig{
			Enabled:      otelEnabled,
			OTLPEndpoint: getEnvOrDefault(getenv, "OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
	}, nil
}

// ParseFields splits a comma-separated sensor field list. The id is always
// returned first by the API and may not be listed.
func ParseFields(s string) ([]string, error) {
	var fields []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if f == airquality.FieldID || !airquality.KnownField(f) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
		if seen[f] {
			return nil, fmt.Errorf("%w: %q listed twice", ErrInvalidField, f)
		}
		seen[f] = true
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty field list", ErrInvalidField)
	}
	return fields, nil
}

// ResolveAPIKey returns explicit when set, otherwise the first line of
// keyFile with surrounding whitespace removed.
func ResolveAPIKey(explicit, keyFile string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return ReadKeyFile(keyFile)
}

// ReadKeyFile reads the API key from the first line of path.
// A missing file yields an error wrapping fs.ErrNotExist.
func ReadKeyFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read api key file: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read api key file: %w", err)
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyAPIKey, path)
	}
	return key, nil
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
