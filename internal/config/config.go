package config

import "os"

// Config holds the server's runtime configuration.  Each field corresponds
// to an environment variable; only APP_PORT and JWT_SECRET are required.
type Config struct {
	Env         string // application environment (dev, test, prod)
	Port        string // HTTP port to listen on
	JWTSecret   string // secret used to verify bearer tokens
	Persistence string // memory | file | redis | mysql | postgres

	FilePath      string // JSON file for PERSISTENCE=file
	CollectionKey string // Redis key for PERSISTENCE=redis

	DBUser      string // mysql user
	DBPass      string // mysql password (optional)
	DBHost      string // mysql host
	DBPort      string // mysql port
	DBName      string // mysql database
	DatabaseURL string // postgres connection string

	RabbitURL      string // AMQP broker; empty disables events
	ExpirySchedule string // cron spec for the missed check-in sweep; empty disables it
	LogDir         string // directory of the reservation audit log

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

// Load reads the server configuration.  Missing required variables stop
// the process through must().
func Load() Config {
	rabbit := os.Getenv("RABBITMQ_URL")
	if rabbit == "" {
		rabbit = os.Getenv("AMQP_URL")
	}
	return Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        must("APP_PORT"),
		JWTSecret:   must("JWT_SECRET"),
		Persistence: envStr("PERSISTENCE", "memory"),

		FilePath:      envStr("PERSISTENCE_FILE", "data/reservations.json"),
		CollectionKey: envStr("PERSISTENCE_KEY", "demo_reservations"),

		DBUser:      envStr("DB_USER", "root"),
		DBPass:      os.Getenv("DB_PASS"),
		DBHost:      envStr("DB_HOST", "127.0.0.1"),
		DBPort:      envStr("DB_PORT", "3306"),
		DBName:      envStr("DB_NAME", "reservations"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RabbitURL: rabbit,
		// EXPIRY_SCHEDULE may be set to "" explicitly to turn the sweep off.
		ExpirySchedule: lookupOr("EXPIRY_SCHEDULE", "@every 1m"),
		LogDir:         envStr("RESERVATION_LOG_DIR", "logs"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
	}
}

func lookupOr(k, d string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return d
}
