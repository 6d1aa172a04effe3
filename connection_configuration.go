// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"errors"
	"fmt"
	"os"
	path "path/filepath"
	"runtime"
	"strconv"
	"strings"

	toml "github.com/BurntSushi/toml"
)

const (
	emberHomeEnv              = "EMBER_HOME"
	emberDefaultConnectionEnv = "EMBER_DEFAULT_CONNECTION_NAME"
	connectionsFileName       = "connections.toml"
	defaultConnectionName     = "default"
	defaultTokenFilePath      = "session/token"
)

// LoadConnectionConfig returns the connection config loaded from
// connections.toml. The file is looked up in EMBER_HOME, ~/.ember by
// default, and the section named by EMBER_DEFAULT_CONNECTION_NAME is used,
// 'default' when unset.
func LoadConnectionConfig() (*Config, error) {
	cfg := &Config{Params: make(map[string]string)}
	name := getConnectionName(os.Getenv(emberDefaultConnectionEnv))
	configDir, err := getTomlFilePath(os.Getenv(emberHomeEnv))
	if err != nil {
		return nil, err
	}
	tomlFilePath := path.Join(configDir, connectionsFileName)
	if err = validateFilePermission(tomlFilePath); err != nil {
		return nil, err
	}
	tomlInfo := make(map[string]interface{})
	if _, err = toml.DecodeFile(tomlFilePath, &tomlInfo); err != nil {
		return nil, connectionConfigError("failed to decode %v: %v", tomlFilePath, err)
	}
	section, ok := tomlInfo[name]
	if !ok {
		return nil, connectionConfigError("connection %q not found in %v", name, tomlFilePath)
	}
	connection, ok := section.(map[string]interface{})
	if !ok {
		return nil, connectionConfigError("connection %q in %v is not a table", name, tomlFilePath)
	}
	if err = parseToml(cfg, connection, configDir); err != nil {
		return nil, err
	}
	if err = fillMissingConfigParameters(cfg); err != nil {
		return nil, err
	}
	logger.Debugf("loaded connection %q from %v", name, tomlFilePath)
	return cfg, nil
}

func parseToml(cfg *Config, connection map[string]interface{}, configDir string) error {
	var tokenPath string
	for key, value := range connection {
		v, err := tomlValueString(value)
		if err != nil {
			return connectionConfigError("invalid value for %v: %v", key, err)
		}
		key = strings.ToLower(key)
		if key == "token_file_path" {
			tokenPath = v
			continue
		}
		if err = applyParameter(cfg, key, v); err != nil {
			return err
		}
	}
	if shouldReadTokenFromFile(cfg) {
		token, err := readToken(tokenPath, configDir)
		if err != nil {
			return err
		}
		cfg.Token = token
	}
	return nil
}

// tomlValueString renders a decoded TOML scalar as the string form accepted
// by applyParameter.
func tomlValueString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported type %T", value)
}

func shouldReadTokenFromFile(cfg *Config) bool {
	return cfg.Authenticator == AuthTypeToken && cfg.Token == ""
}

func readToken(tokenPath, configDir string) (string, error) {
	if tokenPath == "" {
		tokenPath = defaultTokenFilePath
	}
	if !path.IsAbs(tokenPath) {
		tokenPath = path.Join(configDir, tokenPath)
	}
	if err := validateFilePermission(tokenPath); err != nil {
		return "", err
	}
	token, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(token)), nil
}

func getTomlFilePath(filePath string) (string, error) {
	if len(filePath) != 0 {
		if path.IsAbs(filePath) {
			return filePath, nil
		}
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		filePath = path.Join(homeDir, ".ember")
	}
	return path.Abs(filePath)
}

func getConnectionName(name string) string {
	if len(name) != 0 {
		return name
	}
	return defaultConnectionName
}

var errFilePermission = errors.New("file is readable by other users, expected permission 0600")

func validateFilePermission(filePath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return err
	}
	if permission := fileInfo.Mode().Perm(); permission != os.FileMode(0600) {
		return connectionConfigError("%v: %v (%v)", filePath, errFilePermission, permission)
	}
	return nil
}

func connectionConfigError(format string, args ...interface{}) error {
	return &EmberError{
		Number:      ErrCodeConnectionConfig,
		Message:     format,
		MessageArgs: args,
	}
}
