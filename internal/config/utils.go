package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// getEnv returns the raw value of key. A set but empty variable is kept as "".
func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

// lookupParsed parses the trimmed value of key, falling back on absence or parse failure.
func lookupParsed[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	parsed, err := parse(strings.TrimSpace(value))
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookupParsed(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookupParsed(key, defaultVal, strconv.ParseBool)
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	return lookupParsed(key, defaultVal, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookupParsed(key, defaultVal, time.ParseDuration)
}

// getEnvAsStringSlice splits a comma separated list, dropping blank entries.
func getEnvAsStringSlice(key string, defaults []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaults
	}
	var filtered []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return defaults
	}
	return filtered
}
