package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Cassandra
	CassandraHosts    []string
	CassandraKeyspace string
	CassandraTimeout  time.Duration

	// GeoNames
	GeoNamesUsername string
	GeoNamesBaseURL  string
	GeocodeTimeout   time.Duration
	GeocodeMaxSize   int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitCreate  int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	hosts := os.Getenv("CASSANDRA_HOSTS")
	if hosts == "" {
		missing = append(missing, "CASSANDRA_HOSTS")
	} else {
		cfg.CassandraHosts = splitHosts(hosts)
	}

	cfg.CassandraKeyspace = os.Getenv("CASSANDRA_KEYSPACE")
	if cfg.CassandraKeyspace == "" {
		missing = append(missing, "CASSANDRA_KEYSPACE")
	}

	cfg.GeoNamesUsername = os.Getenv("GEONAMES_USERNAME")
	if cfg.GeoNamesUsername == "" {
		missing = append(missing, "GEONAMES_USERNAME")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.CassandraTimeout = getEnvDuration("CASSANDRA_TIMEOUT", 10*time.Second)
	cfg.GeoNamesBaseURL = getEnvString("GEONAMES_BASE_URL", "")
	cfg.GeocodeTimeout = getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second)
	cfg.GeocodeMaxSize = getEnvInt64("GEOCODE_MAX_SIZE", 1048576)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCreate = getEnvInt("RATE_LIMIT_CREATE", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// splitHosts はカンマ区切りのホストリストをパースする。
// 空要素と前後の空白は除去する。
func splitHosts(s string) []string {
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
