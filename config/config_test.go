package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validTOML = `
[logging]
level = "DEBUG"

[server]
identifier = "mix-1"
addresses = ["0.0.0.0:40000"]
data_dir = "/tmp/minion"
num_wire_workers = 4
num_crypto_workers = 2
line_rate = 2000000

[pki.nonvoting]
address = "127.0.0.1:30000"
public_key = "deadbeef"
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load([]byte(validTOML))
	require.NoError(t, err)
	require.Equal(t, "mix-1", cfg.Server.Identifier)
	require.Equal(t, []string{"0.0.0.0:40000"}, cfg.Server.Addresses)
	require.Equal(t, 4, cfg.Server.NumWireWorkers)
	require.Equal(t, uint64(2000000), cfg.Server.LineRate)
	require.NotNil(t, cfg.PKI.Nonvoting)
}

func TestLoadAppliesDefaults(t *testing.T) {
	const minimal = `
[server]
addresses = ["0.0.0.0:40000"]
data_dir = "/tmp/minion"

[pki.nonvoting]
address = "127.0.0.1:30000"
public_key = "deadbeef"
`
	cfg, err := Load([]byte(minimal))
	require.NoError(t, err)
	require.Equal(t, defaultNumWireWorkers, cfg.Server.NumWireWorkers)
	require.Equal(t, defaultNumCryptoWorkers, cfg.Server.NumCryptoWorkers)
	require.Equal(t, uint64(defaultLineRate), cfg.Server.LineRate)
	require.Equal(t, "NOTICE", cfg.Logging.Level)
	require.Equal(t, time.Duration(defaultSlackTimeMS)*time.Millisecond, cfg.SlackTime())
	require.Equal(t, time.Duration(defaultGracePeriodSec)*time.Second, cfg.GracePeriod())
}

func TestLoadRejectsNoAddresses(t *testing.T) {
	const noAddrs = `
[server]
data_dir = "/tmp/minion"

[pki.nonvoting]
address = "127.0.0.1:30000"
public_key = "deadbeef"
`
	_, err := Load([]byte(noAddrs))
	require.ErrorIs(t, err, ErrGenerateOnly)
}

func TestLoadRejectsMissingDataDir(t *testing.T) {
	const noDataDir = `
[server]
addresses = ["0.0.0.0:40000"]

[pki.nonvoting]
address = "127.0.0.1:30000"
public_key = "deadbeef"
`
	_, err := Load([]byte(noDataDir))
	require.Error(t, err)
}

func TestLoadRejectsConflictingPKISections(t *testing.T) {
	const both = `
[server]
addresses = ["0.0.0.0:40000"]
data_dir = "/tmp/minion"

[pki.nonvoting]
address = "127.0.0.1:30000"
public_key = "deadbeef"

[pki.voting]
epoch_duration = "30m"
`
	_, err := Load([]byte(both))
	require.Error(t, err)
}

func TestLoadRejectsNoPKISection(t *testing.T) {
	const neither = `
[server]
addresses = ["0.0.0.0:40000"]
data_dir = "/tmp/minion"
`
	_, err := Load([]byte(neither))
	require.Error(t, err)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	_, err := Load([]byte("this is not = toml[["))
	require.Error(t, err)
}
