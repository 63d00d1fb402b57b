package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses the sweep interval duration
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Identity verification is delegated to an
// external provider; JWTSecret is only used to verify tokens it issues.
type Config struct {
	Env                 string        // application environment (e.g. "dev", "prod")
	Port                string        // HTTP port to listen on
	DBUser              string        // database username
	DBPass              string        // database password (optional)
	DBHost              string        // database host address
	DBPort              string        // database port number
	DBName              string        // database name
	JWTSecret           string        // secret used to verify identity-provider JWTs
	AutoApprove         bool          // admit new reservations directly into APPROVED
	DuplicateCheck      bool          // reject duplicate active requests per facility
	ReminderSweepEvery  time.Duration // how often the background sweeper runs
	DefaultLeadMinutes  int           // reminder lead time applied when the client sends none
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:                must("APP_ENV"),      // environment (dev/test/prod)
		Port:               must("APP_PORT"),     // port to bind the HTTP server
		DBUser:             must("DB_USER"),      // database user
		DBPass:             os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:             must("DB_HOST"),      // database host
		DBPort:             must("DB_PORT"),      // database port
		DBName:             must("DB_NAME"),      // database name
		JWTSecret:          must("JWT_SECRET"),   // secret for verifying IdP-issued JWTs
		AutoApprove:        boolEnv("BOOKING_AUTO_APPROVE", false),
		DuplicateCheck:     boolEnv("BOOKING_DUPLICATE_CHECK", true),
		ReminderSweepEvery: durEnv("REMINDER_SWEEP_EVERY", time.Minute),
		DefaultLeadMinutes: intEnv("REMINDER_DEFAULT_LEAD_MIN", 30),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// boolEnv reads an optional boolean variable with a default.
func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool for %s: %q", key, v)
	}
	return b
}

// intEnv reads an optional integer variable with a default.
func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// durEnv reads an optional duration variable (e.g. "30s") with a
// default.
func durEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
