// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultProtocol       = "https"
	defaultPort           = 443
	defaultConnectTimeout = 60 * time.Second
	defaultLoginTimeout   = 120 * time.Second
	defaultMaxRetryCount  = 7
)

var errInvalidDSNNoSlash = errors.New("invalid DSN: missing the slash separating the database name")

// ConfigBool is a tri-state boolean for options whose default depends on
// other settings.
type ConfigBool uint8

const (
	configBoolNotSet ConfigBool = iota
	// ConfigBoolTrue represents true for the config field
	ConfigBoolTrue
	// ConfigBoolFalse represents false for the config field
	ConfigBoolFalse
)

// Config is a set of configuration parameters
type Config struct {
	User     string // Username
	Password string // Password (requires User)
	Database string // Database name
	Engine   string // Engine the statements run on
	Account  string // Account name (optional)

	Protocol string // http or https (optional)
	Host     string // hostname
	Port     int    // port (optional)

	Authenticator AuthType        // authenticator; derived from the credentials when unset
	ClientID      string          // service account id for client_credentials and keypair
	ClientSecret  string          // service account secret for client_credentials
	Token         string          // access token for the token authenticator
	PrivateKey    *rsa.PrivateKey // private key for the keypair authenticator

	Compress      bool // request the compressed block envelope
	MaxResultRows int  // row cap applied by the decoder, 0 for none

	ConnectTimeout time.Duration // dial timeout
	RequestTimeout time.Duration // timeout of a single control request, 0 for none
	LoginTimeout   time.Duration // timeout of the login sequence
	MaxRetryCount  int           // retries for idempotent control requests

	Tracing          string // log level
	ClientConfigFile string // client_config.json configuring the log level and log file

	ClientStoreTemporaryCredential ConfigBool // keep access tokens in the OS keyring

	// Params are applied as the initial session properties.
	Params map[string]string

	LabelGenerator LabelGenerator    // query label source; uuid based when nil
	Transporter    http.RoundTripper // RoundTripper to intercept HTTP requests and responses
}

// ParseDSN parses the DSN string to a Config.
//
//	user[:password]@host[:port]/database[?param1=value1&paramN=valueN]
func ParseDSN(dsn string) (cfg *Config, err error) {
	cfg = &Config{Params: make(map[string]string)}

	foundSlash := false
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] != '/' {
			continue
		}
		foundSlash = true

		var j, k int
		if i > 0 {
			// user[:password]@ is optional; find the last '@' before the slash
			for j = i; j >= 0; j-- {
				if dsn[j] == '@' {
					for k = 0; k < j; k++ {
						if dsn[k] == ':' {
							if cfg.Password, err = url.PathUnescape(dsn[k+1 : j]); err != nil {
								return nil, err
							}
							break
						}
					}
					if cfg.User, err = url.PathUnescape(dsn[:k]); err != nil {
						return nil, err
					}
					break
				}
			}
			// host[:port]
			for k = j + 1; k < i; k++ {
				if dsn[k] == ':' {
					cfg.Port, err = strconv.Atoi(dsn[k+1 : i])
					if err != nil {
						return nil, &EmberError{
							Number:      ErrCodeFailedToParsePort,
							Message:     errMsgFailedToParsePort,
							MessageArgs: []interface{}{dsn[k+1 : i]},
						}
					}
					break
				}
			}
			cfg.Host = dsn[j+1 : k]
		}

		// [?param1=value1&...&paramN=valueN]
		for j = i + 1; j < len(dsn); j++ {
			if dsn[j] == '?' {
				if err = parseDSNParams(cfg, dsn[j+1:]); err != nil {
					return nil, err
				}
				break
			}
		}
		if db := dsn[i+1 : j]; db != "" {
			if cfg.Database, err = url.PathUnescape(db); err != nil {
				return nil, err
			}
		}
		break
	}

	if !foundSlash && len(dsn) > 0 {
		return nil, errInvalidDSNNoSlash
	}
	if err = fillMissingConfigParameters(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDSNParams parses the DSN "query string". Values must be
// url.QueryEscape'ed.
func parseDSNParams(cfg *Config, params string) (err error) {
	logger.Debugf("Query String: %v", params)
	for _, v := range strings.Split(params, "&") {
		param := strings.SplitN(v, "=", 2)
		if len(param) != 2 {
			continue
		}
		var value string
		if value, err = url.QueryUnescape(param[1]); err != nil {
			return err
		}
		if err = applyParameter(cfg, strings.ToLower(param[0]), value); err != nil {
			return err
		}
	}
	return nil
}

// applyParameter sets one named option. Names that are not options become
// session properties. Shared by the DSN and connections.toml loaders.
func applyParameter(cfg *Config, key, value string) (err error) {
	switch key {
	case "user", "username":
		cfg.User = value
	case "password":
		cfg.Password = value
	case "host":
		cfg.Host = value
	case "port":
		if cfg.Port, err = strconv.Atoi(value); err != nil {
			return &EmberError{
				Number:      ErrCodeFailedToParsePort,
				Message:     errMsgFailedToParsePort,
				MessageArgs: []interface{}{value},
			}
		}
	case "database":
		cfg.Database = value
	case "engine":
		cfg.Engine = value
	case "account":
		cfg.Account = value
	case "protocol":
		cfg.Protocol = value
	case "authenticator":
		if cfg.Authenticator, err = parseAuthType(value); err != nil {
			return err
		}
	case "client_id":
		cfg.ClientID = value
	case "client_secret":
		cfg.ClientSecret = value
	case "token":
		cfg.Token = value
	case "private_key":
		if cfg.PrivateKey, err = decodePrivateKey(value); err != nil {
			return err
		}
	case "compress":
		if cfg.Compress, err = strconv.ParseBool(value); err != nil {
			return invalidParameter(key, value)
		}
	case "max_result_rows":
		if cfg.MaxResultRows, err = strconv.Atoi(value); err != nil || cfg.MaxResultRows < 0 {
			return invalidParameter(key, value)
		}
	case "connect_timeout":
		if cfg.ConnectTimeout, err = parseTimeout(value); err != nil {
			return invalidParameter(key, value)
		}
	case "request_timeout":
		if cfg.RequestTimeout, err = parseTimeout(value); err != nil {
			return invalidParameter(key, value)
		}
	case "login_timeout":
		if cfg.LoginTimeout, err = parseTimeout(value); err != nil {
			return invalidParameter(key, value)
		}
	case "max_retry_count":
		if cfg.MaxRetryCount, err = strconv.Atoi(value); err != nil {
			return invalidParameter(key, value)
		}
	case "tracing":
		cfg.Tracing = value
	case "client_config_file":
		cfg.ClientConfigFile = value
	case "client_store_temporary_credential":
		var vv bool
		if vv, err = strconv.ParseBool(value); err != nil {
			return invalidParameter(key, value)
		}
		if vv {
			cfg.ClientStoreTemporaryCredential = ConfigBoolTrue
		} else {
			cfg.ClientStoreTemporaryCredential = ConfigBoolFalse
		}
	default:
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = value
	}
	return nil
}

func invalidParameter(key, value string) error {
	return &EmberError{
		Number:      ErrCodeInvalidParameterValue,
		Message:     errMsgInvalidParameterValue,
		MessageArgs: []interface{}{key, value},
	}
}

// parseTimeout accepts a Go duration ("90s") or a number of seconds ("90").
func parseTimeout(value string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

func decodePrivateKey(value string) (*rsa.PrivateKey, error) {
	block, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, &EmberError{
			Number:  ErrCodePrivateKeyParseError,
			Message: "Base64 decode failed",
			cause:   err,
		}
	}
	return parsePKCS8PrivateKey(block)
}

func fillMissingConfigParameters(cfg *Config) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return ErrEmptyHost
	}
	if cfg.Protocol == "" {
		cfg.Protocol = defaultProtocol
	}
	if cfg.Port == 0 {
		if cfg.Protocol == "http" {
			cfg.Port = 80
		} else {
			cfg.Port = defaultPort
		}
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = defaultLoginTimeout
	}
	if cfg.MaxRetryCount == 0 {
		cfg.MaxRetryCount = defaultMaxRetryCount
	}
	if cfg.Authenticator == AuthTypeUnset {
		cfg.Authenticator = inferAuthType(cfg)
	}
	return validateAuthConfig(cfg)
}

// DSN constructs a DSN from the Config. Session properties and non default
// options are written as sorted query parameters.
func DSN(cfg *Config) (dsn string, err error) {
	if err = fillMissingConfigParameters(cfg); err != nil {
		return "", err
	}
	var userInfo string
	if cfg.User != "" {
		userInfo = url.PathEscape(cfg.User)
		if cfg.Password != "" {
			userInfo += ":" + url.PathEscape(cfg.Password)
		}
		userInfo += "@"
	}
	params := url.Values{}
	if cfg.Engine != "" {
		params.Add("engine", cfg.Engine)
	}
	if cfg.Account != "" {
		params.Add("account", cfg.Account)
	}
	if cfg.Protocol != defaultProtocol {
		params.Add("protocol", cfg.Protocol)
	}
	if cfg.Authenticator != inferAuthType(cfg) {
		params.Add("authenticator", cfg.Authenticator.String())
	}
	if cfg.ClientID != "" {
		params.Add("client_id", cfg.ClientID)
	}
	if cfg.ClientSecret != "" {
		params.Add("client_secret", cfg.ClientSecret)
	}
	if cfg.Token != "" {
		params.Add("token", cfg.Token)
	}
	if cfg.PrivateKey != nil {
		der, err := marshalPKCS8PrivateKey(cfg.PrivateKey)
		if err != nil {
			return "", err
		}
		params.Add("private_key", base64.URLEncoding.EncodeToString(der))
	}
	if cfg.Compress {
		params.Add("compress", "true")
	}
	if cfg.MaxResultRows > 0 {
		params.Add("max_result_rows", strconv.Itoa(cfg.MaxResultRows))
	}
	if cfg.ConnectTimeout != defaultConnectTimeout {
		params.Add("connect_timeout", strconv.FormatInt(int64(cfg.ConnectTimeout/time.Second), 10))
	}
	if cfg.RequestTimeout != 0 {
		params.Add("request_timeout", strconv.FormatInt(int64(cfg.RequestTimeout/time.Second), 10))
	}
	if cfg.LoginTimeout != defaultLoginTimeout {
		params.Add("login_timeout", strconv.FormatInt(int64(cfg.LoginTimeout/time.Second), 10))
	}
	if cfg.MaxRetryCount != defaultMaxRetryCount {
		params.Add("max_retry_count", strconv.Itoa(cfg.MaxRetryCount))
	}
	if cfg.Tracing != "" {
		params.Add("tracing", cfg.Tracing)
	}
	if cfg.ClientConfigFile != "" {
		params.Add("client_config_file", cfg.ClientConfigFile)
	}
	switch cfg.ClientStoreTemporaryCredential {
	case ConfigBoolTrue:
		params.Add("client_store_temporary_credential", "true")
	case ConfigBoolFalse:
		params.Add("client_store_temporary_credential", "false")
	}
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Add(k, cfg.Params[k])
	}

	dsn = fmt.Sprintf("%v%v:%v/%v", userInfo, cfg.Host, cfg.Port, url.PathEscape(cfg.Database))
	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}
	return dsn, nil
}
