package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr string
	GinMode string

	DBDriver string
	DBPath   string
	DBDSN    string

	DeviceID string
	Currency string

	SyncTransport     string
	SyncEndpoint      string
	SyncToken         string
	NATSURL           string
	NATSSubjectPrefix string
	SyncInterval      time.Duration
	SyncTimeout       time.Duration
	SyncBatchSize     int
	SyncPurgeAfter    time.Duration

	LocationFeedURL   string
	LocationVehicleID string
	LocationPoll      time.Duration

	JWTSecret          string
	CORSAllowedOrigins []string

	LogLevel       string
	LogFile        string
	MetricsEnabled bool

	ReferenceFile string
}

func LoadEnv() (Env, error) {
	// .env is optional on the device
	_ = godotenv.Load()

	env := Env{
		AppAddr:           getenvDefault("APP_ADDR", ":8080"),
		GinMode:           strings.TrimSpace(os.Getenv("GIN_MODE")),
		DBDriver:          strings.ToLower(getenvDefault("DB_DRIVER", "sqlite")),
		DBPath:            getenvDefault("DB_PATH", "conductor.db"),
		DBDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		DeviceID:          getenvDefault("DEVICE_ID", hostname()),
		Currency:          getenvDefault("CURRENCY", "$"),
		SyncTransport:     strings.ToLower(getenvDefault("SYNC_TRANSPORT", "http")),
		SyncEndpoint:      strings.TrimRight(strings.TrimSpace(os.Getenv("SYNC_ENDPOINT")), "/"),
		SyncToken:         strings.TrimSpace(os.Getenv("SYNC_TOKEN")),
		NATSURL:           getenvDefault("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "conductor.sync"),
		LocationFeedURL:   strings.TrimSpace(os.Getenv("LOCATION_FEED_URL")),
		LocationVehicleID: strings.TrimSpace(os.Getenv("LOCATION_VEHICLE_ID")),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		ReferenceFile:     strings.TrimSpace(os.Getenv("REFERENCE_FILE")),
	}

	switch env.DBDriver {
	case "sqlite", "mysql":
	default:
		return env, fmt.Errorf("invalid DB_DRIVER: %q", env.DBDriver)
	}
	if env.DBDriver == "mysql" && env.DBDSN == "" {
		return env, fmt.Errorf("DB_DSN must be set when DB_DRIVER=mysql")
	}

	switch env.SyncTransport {
	case "http", "nats", "none":
	default:
		return env, fmt.Errorf("invalid SYNC_TRANSPORT: %q", env.SyncTransport)
	}

	var err error
	if env.SyncInterval, err = secondsEnv("SYNC_INTERVAL_SEC", 30); err != nil {
		return env, err
	}
	if env.SyncTimeout, err = secondsEnv("SYNC_TIMEOUT_SEC", 15); err != nil {
		return env, err
	}
	if env.LocationPoll, err = secondsEnv("LOCATION_POLL_SEC", 10); err != nil {
		return env, err
	}
	if env.SyncBatchSize, err = intEnv("SYNC_BATCH_SIZE", 100); err != nil {
		return env, err
	}
	hours, err := intEnv("SYNC_PURGE_AFTER_HOURS", 72)
	if err != nil {
		return env, err
	}
	env.SyncPurgeAfter = time.Duration(hours) * time.Hour

	env.MetricsEnabled = parseBool(getenvDefault("METRICS_ENABLED", "true"))

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				env.CORSAllowedOrigins = append(env.CORSAllowedOrigins, o)
			}
		}
	}

	return env, nil
}

// DataSource returns the DSN handed to the SQL driver.
func (e Env) DataSource() string {
	if e.DBDSN != "" {
		return e.DBDSN
	}
	return e.DBPath
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func secondsEnv(k string, def int) (time.Duration, error) {
	n, err := intEnv(k, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "device"
	}
	return h
}
