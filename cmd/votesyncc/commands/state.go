package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/remotechain/votesync/api/httpjson/client"
	"github.com/remotechain/votesync/view"
	"github.com/spf13/cobra"
)

var raw bool

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "show the ballot and session state",
	Long:  "",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.GetState(Address())
		if err != nil {
			return err
		}
		return printState(resp)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "re-read tally and voter status from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.Refresh(Address())
		if err != nil {
			return err
		}
		return printState(resp)
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(refreshCmd)

	stateCmd.Flags().BoolVar(&raw, "raw", false, "print the raw json state")
	refreshCmd.Flags().BoolVar(&raw, "raw", false, "print the raw json state")
}

func printState(resp json.RawMessage) error {
	if raw {
		return FormatOutput(resp)
	}

	var state view.State
	if err := json.Unmarshal(resp, &state); err != nil {
		return err
	}

	switch {
	case state.NoProvider:
		fmt.Println("No wallet available. Install a wallet and start its bridge to vote.")
	case state.WrongNetwork:
		fmt.Println("Wallet is on the wrong network. Run `votesyncc network --switch`.")
	}
	fmt.Printf("Status: %s", state.Status)
	if state.Account != "" {
		fmt.Printf("  Account: %s  Chain: %d", state.Account, state.ChainID)
	}
	fmt.Println()
	if state.Status == view.Connected && !state.LiveUpdates {
		fmt.Println("Live tally updates unavailable. Run `votesyncc refresh` for the latest counts.")
	}
	if state.HasVoted {
		fmt.Println("You have voted.")
	}
	if state.Transaction.Phase != "idle" {
		fmt.Printf("Transaction: %s %s\n", state.Transaction.Phase, state.Transaction.Hash)
	}
	if state.LastError != "" {
		fmt.Printf("Error: %s\n", state.LastError)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVOTES\tSHARE")
	for _, c := range state.Candidates {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.VoteCount, c.Percent)
	}
	fmt.Fprintf(w, "\tTotal\t%d\t\n", state.TotalVotes)
	return w.Flush()
}
