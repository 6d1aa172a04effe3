// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"net"
	"net/http"
	"time"
)

// transportConfig holds the configuration for creating HTTP transports
type transportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
}

// defaultTransportConfig returns the standard transport configuration
func defaultTransportConfig() *transportConfig {
	return &transportConfig{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Minute,
		DialTimeout:         defaultConnectTimeout,
		KeepAlive:           30 * time.Second,
	}
}

type transportFactory struct {
	config *Config
}

func newTransportFactory(config *Config) *transportFactory {
	return &transportFactory{config: config}
}

func (tf *transportFactory) createBaseTransport(transportConfig *transportConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   transportConfig.DialTimeout,
		KeepAlive: transportConfig.KeepAlive,
	}
	return &http.Transport{
		MaxIdleConns:        transportConfig.MaxIdleConns,
		MaxIdleConnsPerHost: transportConfig.MaxIdleConnsPerHost,
		IdleConnTimeout:     transportConfig.IdleConnTimeout,
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		// result bodies are decoded by the client, see restful.go
		DisableCompression: true,
	}
}

// createTransport returns the caller's Transporter when set, otherwise a
// pooled transport using the configured connect timeout.
func (tf *transportFactory) createTransport() http.RoundTripper {
	if tf.config.Transporter != nil {
		return tf.config.Transporter
	}
	tc := defaultTransportConfig()
	tc.DialTimeout = getConfigDuration(tf.config.ConnectTimeout, defaultConnectTimeout)
	return tf.createBaseTransport(tc)
}

// getConfigDuration returns the config duration if non-zero, otherwise returns the default
func getConfigDuration(configValue, defaultValue time.Duration) time.Duration {
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}
