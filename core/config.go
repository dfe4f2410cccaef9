package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string // DEV (default) | TEST | QA | PROD
		AppName          string
		Build            string
		SecretKey        string
		WorkDir          string
		DefaultFromEmail string
		OpsEmail         string
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Checkin  CheckinConfig
	}

	ServerConfig struct {
		Host               string
		Port               string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CheckinConfig struct {
		// LateEarnsPoints awards the token's point value to Late presentations
		// as well; by default Late earns zero.
		LateEarnsPoints bool
		// SkipZeroCredits skips the credit call entirely when the computed
		// amount is zero instead of issuing a zero-amount credit for audit.
		SkipZeroCredits bool
		// BonusPoints is the per-participant amount paid when a session
		// reaches perfect attendance.
		BonusPoints int

		CreditMaxRetries int
		CreditRetryDelay time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) IsProd() bool { return c.Env == "PROD" }

// NewConfig loads the app configuration from defaults, an optional
// config/.env.<env> file and environment variables.
func NewConfig() (*Config, error) {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "LeaderGrid")
	conf.SetDefault("secretKey", "h0ld-17=wr0ng&(b4dg3s+p01nts)_f0r-3v3ry0ne!")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("opsEmail", "ops@localhost")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.port", "8000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "leadergrid")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("checkin.lateEarnsPoints", false)
	conf.SetDefault("checkin.skipZeroCredits", false)
	conf.SetDefault("checkin.bonusPoints", 50)
	conf.SetDefault("checkin.creditMaxRetries", 5)
	conf.SetDefault("checkin.creditRetryDelay", 30*time.Second)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetDefault("env", env)
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()
	conf.SetDefault("workDir", wd)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	conf.AutomaticEnv()

	c := new(Config)
	if err := conf.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return c, nil
}
