package commands

import (
	"strconv"

	"github.com/remotechain/votesync/api/httpjson/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	switchNetwork bool
	refreshLedger bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "connect the wallet and bind the ballot",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.Connect(Address())
		if err != nil {
			return err
		}
		return FormatOutput(resp)
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <candidate id>",
	Short: "vote for a candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		resp, err := client.Vote(Address(), id)
		if err != nil {
			return err
		}
		return FormatOutput(resp)
	},
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "network and ledger actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		showusage := true
		cmd.Flags().Visit(func(name *pflag.Flag) {
			showusage = false
		})
		if showusage {
			return cmd.Usage()
		}
		if switchNetwork {
			if err := client.SwitchNetwork(Address()); err != nil {
				return err
			}
		}
		if refreshLedger {
			resp, err := client.Refresh(Address())
			if err != nil {
				return err
			}
			return printState(resp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(networkCmd)

	networkCmd.Flags().BoolVarP(&switchNetwork, "switch", "s", false, "ask the wallet to switch to the ballot network")
	networkCmd.Flags().BoolVarP(&refreshLedger, "refresh", "r", false, "re-read tally and voter status")
}
