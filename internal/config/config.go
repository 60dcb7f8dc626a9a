package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env               string
	Port              string
	SessionSecret     string
	DatabaseURL       string
	RedisURL          string
	AMQPURL           string // empty disables the notification bridge
	NotifyQueue       string
	PromotionWindow   time.Duration // how long a promoted buyer may act
	SweepInterval     time.Duration // expiry scheduler period
	AllowCrossSiteDev bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	promotionWindow := viper.GetInt("PROMOTION_WINDOW_MINUTES")
	if promotionWindow <= 0 {
		promotionWindow = 15
	}
	sweepInterval := viper.GetInt("SWEEP_INTERVAL_SECONDS")
	if sweepInterval <= 0 {
		sweepInterval = 60
	}

	notifyQueue := viper.GetString("NOTIFY_QUEUE")
	if notifyQueue == "" {
		notifyQueue = "reservation-notifications"
	}

	return &Config{
		Env:               env,
		Port:              port,
		SessionSecret:     viper.GetString("SESSION_SECRET"),
		DatabaseURL:       viper.GetString("DATABASE_URL"),
		RedisURL:          viper.GetString("REDIS_URL"),
		AMQPURL:           viper.GetString("AMQP_URL"),
		NotifyQueue:       notifyQueue,
		PromotionWindow:   time.Duration(promotionWindow) * time.Minute,
		SweepInterval:     time.Duration(sweepInterval) * time.Second,
		AllowCrossSiteDev: strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}
