package config

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Config holds the project config values
type Config struct {
	URL               string        `mapstructure:"DB_URI"`
	DatabaseName      string        `mapstructure:"DB_NAME"`
	BaseURL           string        `mapstructure:"BASE_URL"`
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	AllowedOrigin     string        `mapstructure:"ALLOWED_ORIGIN"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	MongoTransactions bool          `mapstructure:"MONGO_TRANSACTIONS"`
	AMQPURL           string        `mapstructure:"AMQP_URL"`
	GeocoderURL       string        `mapstructure:"GEOCODER_URL"`
	RouterURL         string        `mapstructure:"ROUTER_URL"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	StaleAfter        time.Duration `mapstructure:"STALE_AFTER"`
	TrackerInterval   time.Duration `mapstructure:"TRACKER_INTERVAL"`
}

var defaults = map[string]interface{}{
	"DB_URI":             "mongodb://127.0.0.1:27017",
	"DB_NAME":            "hospital",
	"BASE_URL":           "",
	"PORT":               "8089",
	"ENV":                "local",
	"ALLOWED_ORIGIN":     "http://localhost:3000",
	"JWT_SECRET":         "",
	"MONGO_TRANSACTIONS": true,
	"AMQP_URL":           "",
	"GEOCODER_URL":       "https://nominatim.openstreetmap.org",
	"ROUTER_URL":         "https://router.project-osrm.org",
	"REQUEST_TIMEOUT":    "15s",
	"STALE_AFTER":        "5m",
	"TRACKER_INTERVAL":   "60s",
}

// New loads the config and sets up the global logger
func New() (*Config, error) {
	conf, err := Load()
	if err != nil {
		zap.S().With(err).Error("failed to load config")
		return nil, err
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return conf, nil
}

// Load reads the configuration from the environment, applying defaults for
// anything that is unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, err
	}
	conf.AllowedOrigin = strings.TrimRight(conf.AllowedOrigin, "/")
	return conf, nil
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "local", "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	resp := models.ErrorMessageResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
		zap.S().With(err).Error(message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(resp)
	w.Write(b)
}
