package config // package config loads application configuration from environment variables

import (
    "log"     // log reports configuration errors and halts execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Two independent signing secrets are required so
// that an access token can never be replayed as a refresh token or vice
// versa.
type Config struct {
    Env              string // application environment ("dev", "test", "production")
    Port             string // HTTP port to listen on
    DBUser           string // database username
    DBPass           string // database password (optional)
    DBHost           string // database host address
    DBPort           string // database port number
    DBName           string // database name
    JWTSecret        string // secret used to sign access tokens
    JWTRefreshSecret string // secret used to sign refresh tokens
    AccessTTLMin     int    // access token time-to-live in minutes
    RefreshTTLDays   int    // refresh token time-to-live in days
    BcryptCost       int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),
        Port:             must("APP_PORT"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"), // empty allowed
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTSecret:        must("JWT_SECRET"),
        JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
        AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays:   mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:       mustInt("BCRYPT_COST"),
    }
}

// Production reports whether the service runs in the production deployment
// context.  It controls the Secure attribute on auth cookies.
func (c Config) Production() bool { return c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
