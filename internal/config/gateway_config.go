package config

import (
	"strconv"
	"time"
)

type GatewayConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetClientType() string
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetAPIBaseURL returns the admin backend base URL every gateway call is resolved against.
func (Gateway) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8080")
}

// GetRequestTimeout is the fixed per-call timeout. GATEWAY_TIMEOUT is in seconds.
func (Gateway) GetRequestTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv("GATEWAY_TIMEOUT", "30"))
	if err != nil || seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func (Gateway) GetClientType() string {
	return GetEnv("CLIENT_TYPE", "admin")
}
