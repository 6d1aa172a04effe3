// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	path "path/filepath"
	"strings"
	"sync"
)

const (
	clientConfigEnv      = "EMBER_CLIENT_CONFIG_FILE"
	clientConfigFileName = "client_config.json"
	logFileName          = "ember.log"
	logSubdir            = "go"
	logPathStdout        = "STDOUT"
)

// ClientConfig is the root of client_config.json.
type ClientConfig struct {
	Common *ClientConfigCommonProps `json:"common"`
}

// ClientConfigCommonProps holds the "common" section.
type ClientConfigCommonProps struct {
	LogLevel string `json:"log_level,omitempty"`
	LogPath  string `json:"log_path,omitempty"`
}

// logConfigState remembers which client config file configured logging.
// Logging is configured once per process, except that an explicit file may
// replace a configuration made without one.
type logConfigState struct {
	mu         sync.Mutex
	configured bool
	input      string
	file       *os.File
}

var logConfig = &logConfigState{}

// initLogConfig applies the log level and log path of the client config
// file named by input, EMBER_CLIENT_CONFIG_FILE or found in the default
// locations. A missing config is not an error.
func initLogConfig(input string) error {
	logConfig.mu.Lock()
	defer logConfig.mu.Unlock()
	if !logConfig.allowed(input) {
		return nil
	}
	filePath, err := findClientConfigFile(input)
	if err != nil {
		return clientConfigError(err)
	}
	logConfig.configured = true
	logConfig.input = input
	if filePath == "" {
		return nil
	}
	cfg, err := parseClientConfiguration(filePath)
	if err != nil {
		return clientConfigError(err)
	}
	level := cfg.Common.LogLevel
	if level == "" {
		logger.Warn("log_level not found in client config. using OFF")
		level = "OFF"
	}
	logPath, err := logDirectory(cfg.Common.LogPath)
	if err != nil {
		return clientConfigError(err)
	}
	output, file, err := createLogWriter(logPath)
	if err != nil {
		return clientConfigError(err)
	}
	if err = logger.SetLogLevel(level); err != nil {
		if file != nil {
			file.Close()
		}
		return clientConfigError(err)
	}
	logger.SetOutput(output)
	if logConfig.file != nil {
		if err = logConfig.file.Close(); err != nil {
			logger.Debugf("failed to close the previous log file. err: %v", err)
		}
	}
	logConfig.file = file
	logger.Infof("logging configured from %v. level: %v, path: %v", filePath, level, logPath)
	return nil
}

func (s *logConfigState) allowed(input string) bool {
	if !s.configured {
		return true
	}
	if s.input == "" && input != "" {
		return true
	}
	if input != s.input {
		logger.Warnf("logging will not be configured from %v because it was configured from %v before", input, s.input)
	}
	return false
}

func (s *logConfigState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
	}
	s.configured = false
	s.input = ""
	s.file = nil
}

func findClientConfigFile(input string) (string, error) {
	if input != "" {
		return input, nil
	}
	if env := os.Getenv(clientConfigEnv); env != "" {
		return env, nil
	}
	dirs, err := clientConfigDirs()
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		filePath := path.Join(dir, clientConfigFileName)
		exists, err := existsFile(filePath)
		if err != nil {
			return "", err
		}
		if exists {
			return filePath, nil
		}
	}
	return "", nil
}

// clientConfigDirs lists the working directory and the connections.toml
// directory.
func clientConfigDirs() ([]string, error) {
	configDir, err := getTomlFilePath(os.Getenv(emberHomeEnv))
	if err != nil {
		return nil, err
	}
	return []string{".", configDir}, nil
}

func existsFile(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func parseClientConfiguration(filePath string) (*ClientConfig, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err = json.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%v: %w", filePath, err)
	}
	if cfg.Common == nil {
		return nil, fmt.Errorf("%v: common section not found", filePath)
	}
	if cfg.Common.LogLevel != "" {
		if err = validateLogLevel(cfg.Common.LogLevel); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func validateLogLevel(level string) error {
	switch strings.ToUpper(level) {
	case "OFF", "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
		return nil
	}
	return errors.New("unknown log level: " + level)
}

// logDirectory returns the go subdirectory of logPath, creating it. The
// temporary directory is used when logPath is empty.
func logDirectory(logPath string) (string, error) {
	if strings.EqualFold(logPath, logPathStdout) {
		return logPathStdout, nil
	}
	if logPath == "" {
		logPath = os.TempDir()
		logger.Warnf("log_path not found in client config. using %v", logPath)
	}
	dir := path.Join(logPath, logSubdir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func createLogWriter(logPath string) (io.Writer, *os.File, error) {
	if logPath == logPathStdout {
		return os.Stdout, nil, nil
	}
	file, err := os.OpenFile(path.Join(logPath, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}

func clientConfigError(err error) error {
	return &EmberError{
		Number:      ErrCodeClientConfigFailed,
		Message:     errMsgClientConfigFailed,
		MessageArgs: []interface{}{err.Error()},
		cause:       err,
	}
}
