// Package config loads and validates this node's TOML configuration
// (spec §6 Config Field Table), mirroring the
// mixmasala-server/integration_test.go convention of a byte-slice
// Load(...) that fills defaults and then runs a Validate() pass that
// rejects nonsensical combinations.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultNumWireWorkers   = 1
	defaultNumCryptoWorkers = 1
	defaultSlackTimeMS      = 5000
	defaultGracePeriodSec   = 10
	defaultLineRate         = 1_000_000
)

// ErrGenerateOnly is returned by Validate when server.addresses is
// empty, mirroring meskio-server/server.go's ErrGenerateOnly sentinel.
// This package has no generate-only mode of its own.
var ErrGenerateOnly = errors.New("config: no addresses configured and server is not generate-only")

// Logging mirrors the logging table of spec §6.
type Logging struct {
	Disable bool
	LogFile string `toml:"log_file"`
	Level   string
}

// Server mirrors the server table of spec §6. GracePeriodSec is a
// supplement: spec.md's config table does not list it, but §4.8's
// candidate-epoch logic requires it as an operator-tunable value, not
// a hard-coded constant.
type Server struct {
	Identifier           string
	Addresses            []string
	DataDir              string `toml:"data_dir"`
	IsProvider           bool   `toml:"is_provider"`
	NumWireWorkers       int    `toml:"num_wire_workers"`
	NumCryptoWorkers     int    `toml:"num_crypto_workers"`
	LineRate             uint64 `toml:"line_rate"`
	CryptoWorkerSlackTimeMS int `toml:"crypto_worker_slack_time"`
	GracePeriodSec       int    `toml:"grace_period_sec"`
}

// PKINonvoting mirrors the pki.nonvoting table of spec §6.
type PKINonvoting struct {
	Address   string
	PublicKey string `toml:"public_key"`
}

// PKIVotingPeer is one entry in pki.voting's peers list.
type PKIVotingPeer struct {
	Address   string
	PublicKey string `toml:"public_key"`
}

// PKIVoting mirrors the pki.voting table of spec §6.
type PKIVoting struct {
	EpochDuration time.Duration   `toml:"epoch_duration"`
	Peers         []PKIVotingPeer `toml:"peers"`
}

// PKI holds the two mutually exclusive authority modes.
type PKI struct {
	Nonvoting *PKINonvoting `toml:"nonvoting"`
	Voting    *PKIVoting    `toml:"voting"`
}

// Config is the root TOML document.
type Config struct {
	Logging Logging
	Server  Server
	PKI     PKI `toml:"pki"`
}

// Load parses raw TOML bytes into a validated Config.
func Load(raw []byte) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.Decode(string(raw), cfg); err != nil {
		return nil, fmt.Errorf("config: parse failed: %w", err)
	}
	if err := cfg.applyDefaults().Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() *Config {
	if c.Server.NumWireWorkers == 0 {
		c.Server.NumWireWorkers = defaultNumWireWorkers
	}
	if c.Server.NumCryptoWorkers == 0 {
		c.Server.NumCryptoWorkers = defaultNumCryptoWorkers
	}
	if c.Server.CryptoWorkerSlackTimeMS == 0 {
		c.Server.CryptoWorkerSlackTimeMS = defaultSlackTimeMS
	}
	if c.Server.GracePeriodSec == 0 {
		c.Server.GracePeriodSec = defaultGracePeriodSec
	}
	if c.Server.LineRate == 0 {
		c.Server.LineRate = defaultLineRate
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "NOTICE"
	}
	return c
}

// Validate rejects nonsensical configurations (spec §6/§7: ConfigLoad
// failures exit the process nonzero at startup).
func (c *Config) Validate() error {
	if len(c.Server.Addresses) == 0 {
		return ErrGenerateOnly
	}
	if c.Server.DataDir == "" {
		return errors.New("config: server.data_dir is required")
	}
	if c.Server.NumWireWorkers <= 0 {
		return errors.New("config: server.num_wire_workers must be > 0")
	}
	if c.Server.NumCryptoWorkers <= 0 {
		return errors.New("config: server.num_crypto_workers must be > 0")
	}
	if c.PKI.Nonvoting != nil && c.PKI.Voting != nil {
		return errors.New("config: pki.nonvoting and pki.voting are mutually exclusive")
	}
	if c.PKI.Nonvoting == nil && c.PKI.Voting == nil {
		return errors.New("config: exactly one of pki.nonvoting or pki.voting is required")
	}
	return nil
}

// SlackTime returns the configured dwell-drop threshold as a
// time.Duration (spec §4.8 step 1).
func (c *Config) SlackTime() time.Duration {
	return time.Duration(c.Server.CryptoWorkerSlackTimeMS) * time.Millisecond
}

// GracePeriod returns the configured epoch boundary grace period.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Server.GracePeriodSec) * time.Second
}
