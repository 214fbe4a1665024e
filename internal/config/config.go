package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Required values are enforced by must();
// the lock TTL and sweep interval fall back to the reference values
// (3 minutes, TTL/2) when unset.
type Config struct {
    Env           string        // application environment (e.g. "dev", "prod")
    Port          string        // HTTP port to listen on
    DBUser        string        // database username
    DBPass        string        // database password (optional)
    DBHost        string        // database host address
    DBPort        string        // database port number
    DBName        string        // database name
    LockTTL       time.Duration // how long a seat lock lives before it is reclaimable
    SweepInterval time.Duration // how often the sweeper reclaims expired locks
    LogBackend    string        // "logrus" or "zap"
    LogLevel      string        // minimum log level
    LogFormat     string        // "text" or "json"
}

// Load reads configuration values from environment variables and
// returns a Config. Missing required variables cause the process to
// exit with a fatal log message.
func Load() Config {
    ttl := parseDurDefault(os.Getenv("LOCK_TTL"), 3*time.Minute)
    sweep := parseDurDefault(os.Getenv("SWEEP_INTERVAL"), ttl/2)
    return Config{
        Env:           must("APP_ENV"),
        Port:          must("APP_PORT"),
        DBUser:        must("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"), // empty allowed
        DBHost:        must("DB_HOST"),
        DBPort:        must("DB_PORT"),
        DBName:        must("DB_NAME"),
        LockTTL:       ttl,
        SweepInterval: sweep,
        LogBackend:    getenv("LOG_BACKEND", "logrus"),
        LogLevel:      getenv("LOG_LEVEL", "info"),
        LogFormat:     getenv("LOG_FORMAT", "text"),
    }
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func atoi(s string) int {
    i, _ := strconv.Atoi(s)
    return i
}

func parseDur(s string) time.Duration {
    d, err := time.ParseDuration(s)
    if err != nil {
        return time.Second
    }
    return d
}

func parseDurDefault(s string, def time.Duration) time.Duration {
    if s == "" {
        return def
    }
    d, err := time.ParseDuration(s)
    if err != nil || d <= 0 {
        return def
    }
    return d
}
