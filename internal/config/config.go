// Package config loads the YAML-backed configuration described in the
// ambient stack: transport selection, session timing, cadence, and logging
// level, following the teacher's own LoadConfig/GetTransportConfig shape.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anodyne74/obdclient/internal/cmdqueue"
	"github.com/anodyne74/obdclient/internal/session"
	"github.com/anodyne74/obdclient/internal/transport"
)

// Config is the root configuration document.
type Config struct {
	Transport struct {
		Type     string `yaml:"type"`
		Address  string `yaml:"address"`
		BaudRate int    `yaml:"baudRate"`
	} `yaml:"transport"`

	Session struct {
		CommandTimeout  Duration `yaml:"commandTimeout"`
		InitTimeout     Duration `yaml:"initTimeout"`
		ClearDtcTimeout Duration `yaml:"clearDtcTimeout"`
		QueueCapacity   int      `yaml:"queueCapacity"`
	} `yaml:"session"`

	Cadence struct {
		Period          Duration `yaml:"period"`
		StalenessBudget Duration `yaml:"stalenessBudget"`
	} `yaml:"cadence"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Datastore struct {
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		InfluxDB struct {
			URL    string `yaml:"url"`
			Org    string `yaml:"org"`
			Bucket string `yaml:"bucket"`
			Token  string `yaml:"token"`
		} `yaml:"influxdb"`
	} `yaml:"datastore"`

	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.CommandTimeout == 0 {
		c.Session.CommandTimeout = Duration(session.DefaultCommandTimeout)
	}
	if c.Session.InitTimeout == 0 {
		c.Session.InitTimeout = Duration(session.InitCommandTimeout)
	}
	if c.Session.ClearDtcTimeout == 0 {
		c.Session.ClearDtcTimeout = Duration(session.ClearDtcTimeout)
	}
	if c.Session.QueueCapacity == 0 {
		c.Session.QueueCapacity = cmdqueue.DefaultCapacity
	}
	if c.Cadence.StalenessBudget == 0 {
		c.Cadence.StalenessBudget = Duration(5 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// TransportConfig adapts the YAML transport section into a
// transport.Config, mirroring the teacher's GetTransportConfig.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Type:     c.Transport.Type,
		Address:  c.Transport.Address,
		BaudRate: c.Transport.BaudRate,
		Timeout:  c.Session.CommandTimeout.Duration(),
	}
}

// SessionOptions is the subset of Config the session engine and command
// queue care about.
type SessionOptions struct {
	CommandTimeout  time.Duration
	InitTimeout     time.Duration
	ClearDtcTimeout time.Duration
	QueueCapacity   int
}

// SessionOptions adapts the YAML session section into a SessionOptions value.
func (c *Config) SessionOptions() SessionOptions {
	return SessionOptions{
		CommandTimeout:  c.Session.CommandTimeout.Duration(),
		InitTimeout:     c.Session.InitTimeout.Duration(),
		ClearDtcTimeout: c.Session.ClearDtcTimeout.Duration(),
		QueueCapacity:   c.Session.QueueCapacity,
	}
}
