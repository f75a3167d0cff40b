package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultChainID             = 8119
	MaxLogFileTotalSizeDefault = 100
	ConfigRotateCheckInterval  = 20 * time.Second
)

const (
	defaultConfigFile = "config.json"
)

var (
	Version string
	Debug   = false

	ConfigFile       string
	LogPath          string
	ContractAddress  string
	ContractArtifact string
	LedgerRPCURL     string
	WalletBridgeURL  string
	APIListenAddress string
	AutoReconnect    bool

	Parameters = &Configuration{
		Version:        1,
		LogLevel:       1,
		MaxLogFileSize: 20,
		Network: NetworkConfig{
			ChainID:           DefaultChainID,
			ChainName:         "Shardeum EVM Testnet",
			RPCURLs:           []string{"https://api-mezame.shardeum.org"},
			BlockExplorerURLs: []string{"https://explorer-mezame.shardeum.org"},
			NativeCurrency: CurrencyConfig{
				Name:     "SHM",
				Symbol:   "SHM",
				Decimals: 18,
			},
		},
		ContractArtifact:        "RemoteVoting.json",
		LedgerRPCURL:            "wss://api-mezame.shardeum.org",
		WalletBridgeURL:         "ws://127.0.0.1:30010/wallet",
		ListCandidatesMethod:    "getAllCandidates",
		VoterStatusMethod:       "voters",
		CastVoteMethod:          "vote",
		VoteRecordedEvent:       "VotedEvent",
		AlreadyVotedError:       "AlreadyVoted",
		AlreadyVotedReason:      "already voted",
		PreflightVotes:          true,
		TxDisplayInterval:       4000,
		ReceiptPollInterval:     1000,
		ReceiptTimeout:          300,
		NotificationDedupWindow: 60,
		ResubscribeBackoff:      30,
		LedgerRPCRateLimit:      10,
		LedgerRPCRateBurst:      20,
		RequestTimeout:          30,
		APIListenAddress:        "127.0.0.1",
		APIPort:                 30011,
		APIIPRateLimit:          10,
		APIIPRateBurst:          100,
	}
)

// CurrencyConfig is the native currency of the expected network.
type CurrencyConfig struct {
	Name     string `json:"Name"`
	Symbol   string `json:"Symbol"`
	Decimals uint8  `json:"Decimals"`
}

// NetworkConfig describes the ledger network the wallet must be on, and is
// what gets sent to the wallet when it does not know the network yet.
type NetworkConfig struct {
	ChainID           uint64         `json:"ChainID"`
	ChainName         string         `json:"ChainName"`
	RPCURLs           []string       `json:"RPCURLs"`
	BlockExplorerURLs []string       `json:"BlockExplorerURLs"`
	NativeCurrency    CurrencyConfig `json:"NativeCurrency"`
}

type Configuration struct {
	Version                 int           `json:"Version"`
	LogLevel                int           `json:"LogLevel"`
	LogPath                 string        `json:"LogPath"`
	MaxLogFileSize          uint32        `json:"MaxLogSize"` // in megabytes (MB)
	Network                 NetworkConfig `json:"Network"`
	ContractAddress         string        `json:"ContractAddress"`
	ContractArtifact        string        `json:"ContractArtifact"`
	LedgerRPCURL            string        `json:"LedgerRPCURL"`
	WalletBridgeURL         string        `json:"WalletBridgeURL"`
	ListCandidatesMethod    string        `json:"ListCandidatesMethod"`
	VoterStatusMethod       string        `json:"VoterStatusMethod"`
	CastVoteMethod          string        `json:"CastVoteMethod"`
	VoteRecordedEvent       string        `json:"VoteRecordedEvent"`
	AlreadyVotedError       string        `json:"AlreadyVotedError"`
	AlreadyVotedReason      string        `json:"AlreadyVotedReason"`
	PreflightVotes          bool          `json:"PreflightVotes"`
	AutoReconnect           bool          `json:"AutoReconnect"`
	TxDisplayInterval       time.Duration `json:"TxDisplayInterval"`       // in milliseconds
	ReceiptPollInterval     time.Duration `json:"ReceiptPollInterval"`     // in milliseconds
	ReceiptTimeout          time.Duration `json:"ReceiptTimeout"`          // in seconds
	NotificationDedupWindow time.Duration `json:"NotificationDedupWindow"` // in seconds
	ResubscribeBackoff      time.Duration `json:"ResubscribeBackoff"`      // in seconds
	LedgerRPCRateLimit      float64       `json:"LedgerRPCRateLimit"`      // requests per second
	LedgerRPCRateBurst      uint32        `json:"LedgerRPCRateBurst"`
	RequestTimeout          time.Duration `json:"RequestTimeout"` // in seconds
	APIListenAddress        string        `json:"APIListenAddress"`
	APIPort                 uint16        `json:"APIPort"`
	APIIPRateLimit          float64       `json:"APIIPRateLimit"` // requests per second
	APIIPRateBurst          uint32        `json:"APIIPRateBurst"`
}

func Init() error {
	file, err := OpenConfigFile()
	if err == nil {
		err = json.Unmarshal(file, Parameters)
		if err != nil {
			return err
		}
	} else {
		log.Println("Config file not exists, use default parameters.")
	}

	if len(LogPath) > 0 {
		Parameters.LogPath = LogPath
	}

	if len(ContractAddress) > 0 {
		Parameters.ContractAddress = ContractAddress
	}

	if len(ContractArtifact) > 0 {
		Parameters.ContractArtifact = ContractArtifact
	}

	if len(LedgerRPCURL) > 0 {
		Parameters.LedgerRPCURL = LedgerRPCURL
	}

	if len(WalletBridgeURL) > 0 {
		Parameters.WalletBridgeURL = WalletBridgeURL
	}

	if len(APIListenAddress) > 0 {
		Parameters.APIListenAddress = APIListenAddress
	}

	if AutoReconnect {
		Parameters.AutoReconnect = AutoReconnect
	}

	return Parameters.verify()
}

func (config *Configuration) verify() error {
	if config.Network.ChainID == 0 {
		return errors.New("Network.ChainID in config file should not be zero")
	}

	if len(config.Network.RPCURLs) == 0 {
		return errors.New("Network.RPCURLs in config file should not be blank")
	}

	if !common.IsHexAddress(config.ContractAddress) {
		return fmt.Errorf("invalid ContractAddress %q, deploy the ballot contract and set its address", config.ContractAddress)
	}

	if len(config.ContractArtifact) == 0 {
		return errors.New("ContractArtifact in config file should not be blank")
	}

	if _, err := url.Parse(config.LedgerRPCURL); err != nil || len(config.LedgerRPCURL) == 0 {
		return fmt.Errorf("invalid LedgerRPCURL %q", config.LedgerRPCURL)
	}

	if len(config.ListCandidatesMethod) == 0 || len(config.VoterStatusMethod) == 0 || len(config.CastVoteMethod) == 0 {
		return errors.New("contract method names in config file should not be blank")
	}

	if len(config.VoteRecordedEvent) == 0 {
		return errors.New("VoteRecordedEvent in config file should not be blank")
	}

	if config.MaxLogFileSize <= 0 {
		return fmt.Errorf("MaxLogFileSize should be >= 1 (MB)")
	}

	if config.TxDisplayInterval <= 0 {
		return fmt.Errorf("TxDisplayInterval should be > 0 (ms)")
	}

	if config.ReceiptPollInterval <= 0 {
		return fmt.Errorf("ReceiptPollInterval should be > 0 (ms)")
	}

	if config.LedgerRPCRateLimit <= 0 || config.LedgerRPCRateBurst == 0 {
		return fmt.Errorf("LedgerRPCRateLimit and LedgerRPCRateBurst should be > 0")
	}

	return nil
}

// DisplayInterval is how long a finished transaction stays on screen.
func (config *Configuration) DisplayInterval() time.Duration {
	return config.TxDisplayInterval * time.Millisecond
}

func (config *Configuration) ReceiptPoll() time.Duration {
	return config.ReceiptPollInterval * time.Millisecond
}

func (config *Configuration) ReceiptWait() time.Duration {
	return config.ReceiptTimeout * time.Second
}

func (config *Configuration) DedupWindow() time.Duration {
	return config.NotificationDedupWindow * time.Second
}

// ResubscribeWait caps the wait between attempts to re-arm vote
// notifications.
func (config *Configuration) ResubscribeWait() time.Duration {
	return config.ResubscribeBackoff * time.Second
}

func (config *Configuration) Timeout() time.Duration {
	return config.RequestTimeout * time.Second
}

// IsWebsocketLedger reports whether the ledger endpoint can carry log
// subscriptions.
func (config *Configuration) IsWebsocketLedger() bool {
	return strings.HasPrefix(config.LedgerRPCURL, "ws://") || strings.HasPrefix(config.LedgerRPCURL, "wss://")
}

func GetConfigFile() string {
	configFile := ConfigFile
	if configFile == "" {
		configFile = defaultConfigFile
	}
	return configFile
}

func OpenConfigFile() ([]byte, error) {
	configFile := GetConfigFile()
	_, err := os.Stat(configFile)
	if err != nil {
		return nil, err
	}
	file, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	// Remove the UTF-8 Byte Order Mark
	file = bytes.TrimPrefix(file, []byte("\xef\xbb\xbf"))
	return file, nil
}

func WriteConfigFile(configuration map[string]interface{}) error {
	bytes, err := json.MarshalIndent(&configuration, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetConfigFile(), bytes, 0666)
}

// SetContractAddress records a freshly deployed contract address in the
// config file. The deployment pipeline calls this instead of patching
// sources.
func SetContractAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid contract address %q", addr)
	}

	configuration := make(map[string]interface{})
	file, err := OpenConfigFile()
	if err == nil {
		if err = json.Unmarshal(file, &configuration); err != nil {
			return err
		}
	}

	configuration["ContractAddress"] = common.HexToAddress(addr).Hex()

	err = WriteConfigFile(configuration)
	if err != nil {
		return err
	}
	Parameters.ContractAddress = common.HexToAddress(addr).Hex()
	return nil
}
