package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	BackendURL      string // identity service and proxied API, e.g. http://localhost:8000
	IdentityTimeout time.Duration

	OTPLength         int
	OTPTTL            time.Duration
	OTPHashCost       int
	TokenTTL          time.Duration
	TokenMaxExchanges int
	SweepInterval     time.Duration
	SMSMessageFormat  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	SNSRegion      string
	SNSSenderID    string
	SNSSMSType     string // "Transactional" | "Promotional"

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustedProxies     []string // IPs or CIDRs whose X-Forwarded-For is believed
	AllowedOrigins     []string // CORS allowed origins
	AllowCredentials   bool     // CORS credentials; requires explicit origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	awsRegion := getEnv("AWS_REGION", "us-east-1")
	return &Config{
		AppPort:  getEnv("APP_PORT", "5000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8000"),
		IdentityTimeout: getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second),

		OTPLength:         getEnvInt("OTP_LENGTH", 6),
		OTPTTL:            getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPHashCost:       getEnvInt("OTP_HASH_COST", 8),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 10*time.Minute),
		TokenMaxExchanges: getEnvInt("TOKEN_MAX_EXCHANGES", 5),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		SMSMessageFormat:  getEnv("SMS_MESSAGE_FORMAT", "Your Swift Shaadi verification code is %s"),

		AWSRegion:      awsRegion,
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SNSRegion:      getEnv("SNS_REGION", awsRegion),
		SNSSenderID:    getEnv("SNS_SENDER_ID", ""),
		SNSSMSType:     getEnv("SNS_SMS_TYPE", "Transactional"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", time.Minute),

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
		AllowCredentials:   getEnvBool("CORS_ALLOW_CREDENTIALS", false),
	}
}

// Validate reports settings the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL %q is not an absolute URL", c.BackendURL))
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		errs = append(errs, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTPLength))
	}
	if c.OTPTTL <= 0 || c.TokenTTL <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("OTP_TTL, TOKEN_TTL and SWEEP_INTERVAL must be positive"))
	}
	if c.TokenMaxExchanges < 0 {
		errs = append(errs, fmt.Errorf("TOKEN_MAX_EXCHANGES must be 0 (unbounded) or more, got %d", c.TokenMaxExchanges))
	}
	if !strings.Contains(c.SMSMessageFormat, "%s") {
		errs = append(errs, errors.New("SMS_MESSAGE_FORMAT must contain %s"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.AllowCredentials && slices.Contains(c.AllowedOrigins, "*") {
		errs = append(errs, errors.New("CORS_ALLOW_CREDENTIALS needs explicit ALLOWED_ORIGINS, not *"))
	}
	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, v := range c.TrustedProxies {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", v, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", v, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
