package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time expresses the delay windows and intervals

	"github.com/quadrille/attribution/internal/scoring"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  The delay windows govern
// the eligibility gate and the batch deadline; the scheduler fields
// control how often the batches fire.
type Config struct {
	Env                 string        // application environment (e.g. "dev", "prod")
	Port                string        // HTTP port to listen on
	DBUser              string        // database username
	DBPass              string        // database password (optional)
	DBHost              string        // database host address
	DBPort              string        // database port number
	DBName              string        // database name
	GuestDelay          time.Duration // last-chance window for recent bidders (guests)
	RegularDelay        time.Duration // window for the premium/familiarity exceptions
	SeniorDelay         time.Duration // base deadline for automatic attribution
	AttributionInterval time.Duration // how often the attribution batch runs
	RekeyHour           int           // UTC hour of the nightly rekey
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message;
// the delay windows and scheduler settings fall back to production
// defaults.
func Load() Config {
	return Config{
		Env:                 must("APP_ENV"),      // environment (dev/test/prod)
		Port:                must("APP_PORT"),     // port to bind the HTTP server
		DBUser:              must("DB_USER"),      // database user
		DBPass:              os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:              must("DB_HOST"),      // database host
		DBPort:              must("DB_PORT"),      // database port
		DBName:              must("DB_NAME"),      // database name
		GuestDelay:          hours("GUEST_DELAY_HOURS", 48),
		RegularDelay:        hours("REGULAR_DELAY_HOURS", 72),
		SeniorDelay:         hours("SENIOR_DELAY_HOURS", 96),
		AttributionInterval: duration("ATTRIBUTION_INTERVAL", 5*time.Minute),
		RekeyHour:           intval("REKEY_HOUR", 4),
	}
}

// Delays bundles the three windows for the scoring package.
func (c Config) Delays() scoring.Delays {
	return scoring.Delays{
		Guest:   c.GuestDelay,
		Regular: c.RegularDelay,
		Senior:  c.SeniorDelay,
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// hours reads an integer hour count with a default.
func hours(key string, def int) time.Duration {
	return time.Duration(intval(key, def)) * time.Hour
}

// intval reads an integer with a default; invalid values are fatal.
func intval(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// duration reads a time.Duration with a default; invalid values are fatal.
func duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
