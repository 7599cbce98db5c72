package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Engine    EngineConfig
	Telephony TelephonyConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// EngineConfig tunes the campaign-dispatch engine.
type EngineConfig struct {
	// WorkerCount is the number of batch-operation worker goroutines.
	WorkerCount int

	// QueueKey is the redis list used for queued batch operations.
	QueueKey string

	// DefaultCallFlowLogic is used when neither the participation, the callout
	// nor the account names one. Must be a registered flow; checked at startup.
	DefaultCallFlowLogic string

	// DefaultRetryStatuses selects which terminal call statuses make a
	// participation eligible for another attempt.
	DefaultRetryStatuses []string

	// DefaultMaxCalls caps attempts per participation when a batch operation
	// does not override it.
	DefaultMaxCalls int

	// CalloutDispatchCap bounds concurrent provider dispatches per callout.
	CalloutDispatchCap int

	// TargetingStore selects where targeting queries run: "memory" or
	// "postgres". The postgres store needs the callout_participations and
	// phone_calls tables migrated.
	TargetingStore string

	// StatusCallbackURL is handed to the provider so call events come back to
	// this engine's webhook endpoint.
	StatusCallbackURL string
}

type TelephonyConfig struct {
	// Provider selects the dial client: "twilio" or "fake".
	Provider string

	TwilioBaseURL    string
	TwilioAccountSID string
	TwilioAuthToken  string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Engine.WorkerCount = optInt("ENGINE_WORKER_COUNT")
	c.Engine.QueueKey = strings.TrimSpace(os.Getenv("ENGINE_QUEUE_KEY"))
	c.Engine.DefaultCallFlowLogic = strings.TrimSpace(os.Getenv("ENGINE_DEFAULT_CALL_FLOW_LOGIC"))
	c.Engine.DefaultRetryStatuses = splitList(os.Getenv("ENGINE_DEFAULT_RETRY_STATUSES"))
	c.Engine.DefaultMaxCalls = optInt("ENGINE_DEFAULT_MAX_CALLS")
	c.Engine.CalloutDispatchCap = optInt("ENGINE_CALLOUT_DISPATCH_CAP")
	c.Engine.TargetingStore = strings.TrimSpace(os.Getenv("ENGINE_TARGETING_STORE"))
	c.Engine.StatusCallbackURL = strings.TrimSpace(os.Getenv("ENGINE_STATUS_CALLBACK_URL"))

	c.Telephony.Provider = strings.TrimSpace(os.Getenv("TELEPHONY_PROVIDER"))
	c.Telephony.TwilioBaseURL = strings.TrimSpace(os.Getenv("TWILIO_BASE_URL"))
	c.Telephony.TwilioAccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Telephony.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Engine.WorkerCount <= 0 {
		c.Engine.WorkerCount = 4
	}
	if c.Engine.QueueKey == "" {
		c.Engine.QueueKey = "batch_operations:queued"
	}
	if c.Engine.DefaultCallFlowLogic == "" {
		c.Engine.DefaultCallFlowLogic = "hello_world"
	}
	if len(c.Engine.DefaultRetryStatuses) == 0 {
		c.Engine.DefaultRetryStatuses = []string{"failed"}
	}
	if c.Engine.DefaultMaxCalls <= 0 {
		c.Engine.DefaultMaxCalls = 3
	}
	if c.Engine.CalloutDispatchCap <= 0 {
		c.Engine.CalloutDispatchCap = 30
	}
	switch c.Engine.TargetingStore {
	case "":
		c.Engine.TargetingStore = "memory"
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("ENGINE_TARGETING_STORE must be memory or postgres, got %q", c.Engine.TargetingStore))
	}

	switch c.Telephony.Provider {
	case "":
		c.Telephony.Provider = "fake"
	case "fake":
	case "twilio":
		if c.Telephony.TwilioAccountSID == "" || c.Telephony.TwilioAuthToken == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for the twilio provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("TELEPHONY_PROVIDER must be twilio or fake, got %q", c.Telephony.Provider))
	}
	if c.IsProduction() && c.Telephony.Provider == "fake" {
		errs = append(errs, errors.New("TELEPHONY_PROVIDER fake is not allowed in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
