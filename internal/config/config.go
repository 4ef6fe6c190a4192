package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	SiteID    string

	DBDriver string
	DBDSN    string

	DraftStore    string // memory|sql|redis
	DraftTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// host LMS web services
	LMSBaseURL      string
	LMSWSToken      string
	LMSTokenURL     string
	LMSClientID     string
	LMSClientSecret string
	LMSTimeout      time.Duration

	AuthHMACSecret  string
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	SearchDebounce    time.Duration
	RedirectDelay     time.Duration
	BuilderEditPolicy string // new|inplace

	LogLevel  string
	LogFormat string // json|console
}

func defaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SITE_ID", "local")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DRAFT_STORE", "sql")
	v.SetDefault("DRAFT_TTL", 7*24*time.Hour)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LMS_BASE_URL", "http://localhost")
	v.SetDefault("LMS_TIMEOUT", 30*time.Second)
	v.SetDefault("AUTH_HMAC_SECRET", "supersecret-dev-key")
	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://lms.mindengage.ai")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010")
	v.SetDefault("SEARCH_DEBOUNCE", 300*time.Millisecond)
	v.SetDefault("REDIRECT_DELAY", 2*time.Second)
	v.SetDefault("BUILDER_EDIT_POLICY", "new")
	v.SetDefault("LOG_LEVEL", "info")
}

// FromEnv reads the process environment, after loading .env from the working
// directory when one exists.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	logFormat := v.GetString("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
		if mode == ModeOnline {
			logFormat = "json"
		}
	}
	c := Config{
		Mode:      mode,
		HTTPAddr:  v.GetString("HTTP_ADDR"),
		PublicURL: strings.TrimSuffix(v.GetString("PUBLIC_URL"), "/"),
		SiteID:    v.GetString("SITE_ID"),

		DBDriver: v.GetString("DB_DRIVER"),
		DBDSN:    v.GetString("DB_DSN"),

		DraftStore:    strings.ToLower(v.GetString("DRAFT_STORE")),
		DraftTTL:      v.GetDuration("DRAFT_TTL"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		LMSBaseURL:      v.GetString("LMS_BASE_URL"),
		LMSWSToken:      v.GetString("LMS_WS_TOKEN"),
		LMSTokenURL:     v.GetString("LMS_TOKEN_URL"),
		LMSClientID:     v.GetString("LMS_CLIENT_ID"),
		LMSClientSecret: v.GetString("LMS_CLIENT_SECRET"),
		LMSTimeout:      v.GetDuration("LMS_TIMEOUT"),

		AuthHMACSecret:  v.GetString("AUTH_HMAC_SECRET"),
		EnableLocalAuth: boolOr(v, "ENABLE_LOCAL_AUTH", mode != ModeOnline),
		AdminUser:       v.GetString("ADMIN_USER"),
		AdminPassHash:   v.GetString("ADMIN_PASS_HASH"),

		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),

		SearchDebounce:    v.GetDuration("SEARCH_DEBOUNCE"),
		RedirectDelay:     v.GetDuration("REDIRECT_DELAY"),
		BuilderEditPolicy: strings.ToLower(v.GetString("BUILDER_EDIT_POLICY")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: logFormat,
	}
	return c, c.Validate()
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Mode != ModeOffline && c.Mode != ModeOnline {
		errs = append(errs, fmt.Errorf("MODE must be offline or online, got %q", c.Mode))
	}
	switch c.DraftStore {
	case "memory", "sql", "redis":
	default:
		errs = append(errs, fmt.Errorf("DRAFT_STORE must be memory, sql or redis, got %q", c.DraftStore))
	}
	switch c.BuilderEditPolicy {
	case "new", "inplace":
	default:
		errs = append(errs, fmt.Errorf("BUILDER_EDIT_POLICY must be new or inplace, got %q", c.BuilderEditPolicy))
	}
	if c.LMSBaseURL == "" {
		errs = append(errs, errors.New("LMS_BASE_URL is required"))
	}
	if c.Mode == ModeOnline && c.AuthHMACSecret == "supersecret-dev-key" {
		errs = append(errs, errors.New("AUTH_HMAC_SECRET must be set in online mode"))
	}
	if c.SearchDebounce < 0 || c.RedirectDelay < 0 {
		errs = append(errs, errors.New("SEARCH_DEBOUNCE and REDIRECT_DELAY must not be negative"))
	}
	return errors.Join(errs...)
}

// CORSOrigins picks the origin list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func boolOr(v *viper.Viper, k string, def bool) bool {
	if !v.IsSet(k) || v.GetString(k) == "" {
		return def
	}
	return v.GetBool(k)
}

func csv(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
