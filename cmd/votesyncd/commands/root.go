package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/remotechain/votesync/api/httpjson"
	"github.com/remotechain/votesync/api/websocket"
	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/contract"
	"github.com/remotechain/votesync/event"
	"github.com/remotechain/votesync/ledger"
	"github.com/remotechain/votesync/session"
	"github.com/remotechain/votesync/util/log"
	"github.com/remotechain/votesync/view"
	"github.com/remotechain/votesync/wallet"
	"github.com/spf13/cobra"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	ledgerLimiterKey = "ledger"
	shutdownTimeout  = 5 * time.Second
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "votesyncd",
	Version: config.Version,
	Short:   "votesyncd - wallet voting client daemon",
	Long:    "",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := votesyncMain(); err != nil {
			log.Error(err)
			return err
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&config.ConfigFile, "config", "", "config file name")
	rootCmd.Flags().StringVar(&config.LogPath, "log", "", "directory where your log file will be generated")
	rootCmd.Flags().StringVar(&config.ContractAddress, "contract", "", "deployed ballot contract address")
	rootCmd.Flags().StringVar(&config.ContractArtifact, "artifact", "", "contract artifact or abi file")
	rootCmd.Flags().StringVar(&config.LedgerRPCURL, "ledger", "", "ledger json-rpc endpoint, ws:// or wss:// for live updates")
	rootCmd.Flags().StringVar(&config.WalletBridgeURL, "wallet", "", "wallet bridge websocket url")
	rootCmd.Flags().StringVar(&config.APIListenAddress, "api-listen-address", "", "api server will listen this address (default: 127.0.0.1)")
	rootCmd.Flags().BoolVar(&config.AutoReconnect, "auto-reconnect", false, "reconnect automatically after the wallet account or network changes")
}

func votesyncMain() error {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	err := config.Init()
	if err != nil {
		return err
	}

	err = log.Init()
	if err != nil {
		return err
	}

	log.Infof("votesyncd version: %v", config.Version)

	parsed, err := contract.LoadArtifact(config.Parameters.ContractArtifact)
	if err != nil {
		return fmt.Errorf("load contract artifact: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, config.Parameters.Timeout())
	ethClient, err := ledger.Dial(dialCtx, config.Parameters.LedgerRPCURL)
	dialCancel()
	if err != nil {
		return fmt.Errorf("dial ledger: %v", err)
	}
	defer ethClient.Close()

	if !config.Parameters.IsWebsocketLedger() {
		log.Warning("Ledger endpoint is not a websocket, vote notifications are unavailable")
	}

	backend := ledger.NewLimitedBackend(ethClient, ledgerLimiterKey,
		config.Parameters.LedgerRPCRateLimit, int(config.Parameters.LedgerRPCRateBurst))

	var provider wallet.Provider
	if len(config.Parameters.WalletBridgeURL) > 0 {
		bridge, err := wallet.Dial(ctx, config.Parameters.WalletBridgeURL)
		if err != nil {
			log.Warningf("No wallet available at %s: %v", config.Parameters.WalletBridgeURL, err)
		} else {
			defer bridge.Close()
			provider = bridge
		}
	}

	queue := event.NewEventQueue()
	queue.Subscribe(event.SessionReset, func(v interface{}) {
		log.Infof("Session %v torn down", v)
	})
	queue.Subscribe(event.VoteRecorded, func(v interface{}) {
		log.Debugf("Vote recorded: %+v", v)
	})

	store := view.NewStore(queue)
	connector := session.NewConnector(provider, backend, store, queue, session.ConfigFromParameters(config.Parameters, contract.Config{
		Address:     ethcommon.HexToAddress(config.Parameters.ContractAddress),
		ABI:         parsed,
		Names:       contract.NamesFromConfig(config.Parameters),
		Preflight:   config.Parameters.PreflightVotes,
		ReceiptPoll: config.Parameters.ReceiptPoll(),
	}))
	defer connector.Close()

	ws := websocket.NewServer(connector, queue)
	rpcServer := httpjson.NewServer(connector, ws)
	if err = rpcServer.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		rpcServer.Stop(shutdownCtx)
	}()

	go func() {
		if err := connector.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("Wallet notifications stopped: %v", err)
		}
	}()

	for range signalChan {
		fmt.Printf("\nReceived an interrupt, stopping services...\n")
		return nil
	}

	return nil
}
