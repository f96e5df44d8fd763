// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the kiln host configuration from an optional YAML
// file, KILN_ environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/kiln/pkg/cli"
	"github.com/Thermoquad/kiln/pkg/history"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given
const DefaultPath = "kiln.yaml"

// EnvPrefix prefixes every environment override, e.g. KILN_SERIAL_PORT
const EnvPrefix = "KILN"

// Config is the top-level host configuration
type Config struct {
	Prompt string       `mapstructure:"prompt" yaml:"prompt"`
	Shell  ShellConfig  `mapstructure:"shell" yaml:"shell"`
	Serial SerialConfig `mapstructure:"serial" yaml:"serial"`
	WS     WSConfig     `mapstructure:"ws" yaml:"ws"`
	SSH    SSHConfig    `mapstructure:"ssh" yaml:"ssh"`
	NVM    NVMConfig    `mapstructure:"nvm" yaml:"nvm"`
}

// ShellConfig sizes every session
type ShellConfig struct {
	RxBuffer     int `mapstructure:"rx_buffer" yaml:"rx_buffer"`
	OutputBuffer int `mapstructure:"output_buffer" yaml:"output_buffer"`
	MaxLine      int `mapstructure:"max_line" yaml:"max_line"`
	MaxParams    int `mapstructure:"max_params" yaml:"max_params"`
	HistoryDepth int `mapstructure:"history_depth" yaml:"history_depth"`
	MessageSize  int `mapstructure:"message_size" yaml:"message_size"`
	// Tick is the main loop period as a Go duration string
	Tick string `mapstructure:"tick" yaml:"tick"`
}

// SerialConfig selects the UART
type SerialConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	Baud int    `mapstructure:"baud" yaml:"baud"`
}

// WSConfig configures the websocket server
type WSConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// SSHConfig configures the SSH server
type SSHConfig struct {
	Listen  string `mapstructure:"listen" yaml:"listen"`
	HostKey string `mapstructure:"host_key" yaml:"host_key"`
}

// NVMConfig locates the emulated non-volatile memory image
type NVMConfig struct {
	File string `mapstructure:"file" yaml:"file"`
	Size int64  `mapstructure:"size" yaml:"size"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Prompt: cli.DefaultPrompt,
		Shell: ShellConfig{
			RxBuffer:     cli.DefaultRxBufferSize,
			OutputBuffer: cli.DefaultOutputBufferSize,
			MaxLine:      cli.DefaultMaxLineLength,
			MaxParams:    cli.DefaultMaxParams,
			HistoryDepth: history.DefaultDepth,
			MessageSize:  cli.DefaultMessageSize,
			Tick:         "10ms",
		},
		Serial: SerialConfig{Baud: 115200},
		WS:     WSConfig{Listen: ":8023", Path: "/shell"},
		SSH:    SSHConfig{Listen: ":2222", HostKey: filepath.Join(".kiln", "ssh_host_ed25519_key")},
		NVM:    NVMConfig{File: "kiln-nvm.img", Size: 4096},
	}
}

// New returns a viper instance carrying the defaults and the environment
// mapping. Callers bind their flags to it before Load.
func New() *viper.Viper {
	def := Default()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("prompt", def.Prompt)
	v.SetDefault("shell.rx_buffer", def.Shell.RxBuffer)
	v.SetDefault("shell.output_buffer", def.Shell.OutputBuffer)
	v.SetDefault("shell.max_line", def.Shell.MaxLine)
	v.SetDefault("shell.max_params", def.Shell.MaxParams)
	v.SetDefault("shell.history_depth", def.Shell.HistoryDepth)
	v.SetDefault("shell.message_size", def.Shell.MessageSize)
	v.SetDefault("shell.tick", def.Shell.Tick)
	v.SetDefault("serial.port", def.Serial.Port)
	v.SetDefault("serial.baud", def.Serial.Baud)
	v.SetDefault("ws.listen", def.WS.Listen)
	v.SetDefault("ws.path", def.WS.Path)
	v.SetDefault("ssh.listen", def.SSH.Listen)
	v.SetDefault("ssh.host_key", def.SSH.HostKey)
	v.SetDefault("nvm.file", def.NVM.File)
	v.SetDefault("nvm.size", def.NVM.Size)
	return v
}

// Load reads path into v and decodes the result. A missing file is only
// an error when required is set; the returned bool reports whether a file
// was read.
func Load(v *viper.Viper, path string, required bool) (Config, bool, error) {
	loaded := false
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, false, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			loaded = true
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, false, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, loaded, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, loaded, err
	}
	return cfg, loaded, nil
}

// Validate checks values that viper cannot
func (c Config) Validate() error {
	if _, err := c.Shell.TickInterval(); err != nil {
		return err
	}
	if c.Prompt == "" {
		return errors.New("prompt must not be empty")
	}
	if c.NVM.Size < 3 {
		return fmt.Errorf("nvm.size %d is too small", c.NVM.Size)
	}
	if !strings.HasPrefix(c.WS.Path, "/") {
		return fmt.Errorf("ws.path %q must start with /", c.WS.Path)
	}
	return nil
}

// TickInterval parses Tick
func (s ShellConfig) TickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(s.Tick)
	if err != nil {
		return 0, fmt.Errorf("invalid shell.tick %q: %w", s.Tick, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("shell.tick must be positive, got %s", d)
	}
	return d, nil
}

// Options converts the sizes to session options
func (s ShellConfig) Options() cli.Options {
	return cli.Options{
		RxBufferSize:     s.RxBuffer,
		OutputBufferSize: s.OutputBuffer,
		MaxLineLength:    s.MaxLine,
		MaxParams:        s.MaxParams,
		HistoryDepth:     s.HistoryDepth,
		MessageSize:      s.MessageSize,
	}
}

// WriteDefault writes the default config to path. An existing file is only
// replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if path == "" {
		path = DefaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
