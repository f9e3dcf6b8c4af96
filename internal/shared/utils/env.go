package utils

import (
	"os"
	"strconv"
	"time"
)

// GetEnv returns the value of key or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func GetEnvInt64(key string, fallback int64) int64 {
	value, err := strconv.ParseInt(GetEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func GetEnvFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(GetEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return value
}

func GetEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

// GetEnvDuration reads a whole number of units (for example seconds) and
// scales it by unit.
func GetEnvDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(GetEnvInt(key, fallback)) * unit
}
