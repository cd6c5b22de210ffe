package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// newEnv returns a viper instance reading an optional .env file, then the process environment.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine
	v.AutomaticEnv()
	return v
}

// envString reads a string with a default.
func envString(v *viper.Viper, key, def string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	return s
}

// envBool reads a bool with a default. Unparseable values fall back to def.
func envBool(v *viper.Viper, key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return def
	}
}

// envInt reads a positive int with a default.
func envInt(v *viper.Viper, key string, def int) int {
	if strings.TrimSpace(v.GetString(key)) == "" {
		return def
	}
	n := v.GetInt(key)
	if n <= 0 {
		return def
	}
	return n
}

// envInt32 reads a non-negative int32 with a default.
func envInt32(v *viper.Viper, key string, def int32) int32 {
	if strings.TrimSpace(v.GetString(key)) == "" {
		return def
	}
	n := v.GetInt64(key)
	if n < 0 || n > 1<<31-1 {
		return def
	}
	return int32(n)
}

// envDuration reads a positive duration with a default.
func envDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
