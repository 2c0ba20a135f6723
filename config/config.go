package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		// .env is optional; real environment variables still win
		_ = godotenv.Load()

		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("poll_interval", "POLL_INTERVAL")
		viper.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
		viper.BindEnv("price_provider", "PRICE_PROVIDER")
		viper.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
		viper.BindEnv("chart_range", "CHART_RANGE")
		viper.BindEnv("chart_cache_ttl", "CHART_CACHE_TTL")
		viper.BindEnv("timezone", "TIMEZONE")
		viper.BindEnv("metrics_snapshot_schedule", "METRICS_SNAPSHOT_SCHEDULE")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "/app/data/stocks.db")
		viper.SetDefault("poll_interval", 45*time.Second)
		viper.SetDefault("fetch_timeout", 10*time.Second)
		viper.SetDefault("price_provider", "yahoo")
		viper.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
		viper.SetDefault("chart_range", "1mo")
		viper.SetDefault("chart_cache_ttl", 5*time.Minute)
		viper.SetDefault("timezone", "Asia/Shanghai")
		viper.SetDefault("metrics_snapshot_schedule", "@every 5m")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}

// PollSettings returns the alert poll interval and the per-fetch timeout.
// The timeout is kept below the interval so one stuck request cannot stall
// the next cycle; ok is false when the configured timeout had to be clamped.
func PollSettings() (interval, timeout time.Duration, ok bool) {
	interval = GetDuration("poll_interval")
	if interval <= 0 {
		interval = 45 * time.Second
	}
	timeout = GetDuration("fetch_timeout")
	if timeout <= 0 || timeout >= interval {
		return interval, interval / 2, false
	}
	return interval, timeout, true
}
