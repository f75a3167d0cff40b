package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) string {
	saved := *Parameters
	savedFile := ConfigFile
	t.Cleanup(func() {
		*Parameters = saved
		ConfigFile = savedFile
	})

	ConfigFile = filepath.Join(t.TempDir(), "config.json")
	if content != "" {
		require.NoError(t, os.WriteFile(ConfigFile, []byte(content), 0666))
	}
	return ConfigFile
}

// go test -v -run=TestInit
func TestInit(t *testing.T) {
	withConfigFile(t, "\xef\xbb\xbf"+`{
		"ContractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"TxDisplayInterval": 2500,
		"NotificationDedupWindow": 30
	}`)

	require.NoError(t, Init())
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", Parameters.ContractAddress)
	require.Equal(t, 2500*time.Millisecond, Parameters.DisplayInterval())
	require.Equal(t, 30*time.Second, Parameters.DedupWindow())
	require.Equal(t, 30*time.Second, Parameters.ResubscribeWait())
	require.Equal(t, time.Second, Parameters.ReceiptPoll())
	require.Equal(t, 5*time.Minute, Parameters.ReceiptWait())
	require.Equal(t, uint64(DefaultChainID), Parameters.Network.ChainID)
	require.True(t, Parameters.IsWebsocketLedger())
}

// go test -v -run=TestInitMissingAddress
func TestInitMissingAddress(t *testing.T) {
	withConfigFile(t, `{"ContractAddress": ""}`)
	require.Error(t, Init())

	withConfigFile(t, `{"ContractAddress": "0x1234"}`)
	require.Error(t, Init())
}

// go test -v -run=TestVerify
func TestVerify(t *testing.T) {
	c := *Parameters
	c.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	require.NoError(t, c.verify())

	bad := c
	bad.Network.ChainID = 0
	require.Error(t, bad.verify())

	bad = c
	bad.CastVoteMethod = ""
	require.Error(t, bad.verify())

	bad = c
	bad.TxDisplayInterval = 0
	require.Error(t, bad.verify())

	bad = c
	bad.LedgerRPCURL = "https://api-mezame.shardeum.org"
	require.NoError(t, bad.verify())
	require.False(t, bad.IsWebsocketLedger())
}

// go test -v -run=TestSetContractAddress
func TestSetContractAddress(t *testing.T) {
	file := withConfigFile(t, `{"LogLevel": 0}`)

	require.Error(t, SetContractAddress("not an address"))
	require.NoError(t, SetContractAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"))
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", Parameters.ContractAddress)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	configuration := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(data, &configuration))
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", configuration["ContractAddress"])
	require.Equal(t, float64(0), configuration["LogLevel"])
}
