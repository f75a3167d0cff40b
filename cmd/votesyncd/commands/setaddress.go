package commands

import (
	"fmt"

	"github.com/remotechain/votesync/config"
	"github.com/spf13/cobra"
)

// setAddressCmd is run by the deployment pipeline after the ballot contract
// is deployed.
var setAddressCmd = &cobra.Command{
	Use:   "setaddress <contract address>",
	Short: "record the deployed contract address in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetContractAddress(args[0]); err != nil {
			return err
		}
		fmt.Printf("ContractAddress set to %s in %s\n", config.Parameters.ContractAddress, config.GetConfigFile())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setAddressCmd)
	setAddressCmd.Flags().StringVar(&config.ConfigFile, "config", "", "config file name")
}
