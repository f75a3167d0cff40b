package commands

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"strconv"

	"github.com/remotechain/votesync/config"
	"github.com/spf13/cobra"
)

// Globals
var (
	ip   string
	port string
)

var rootCmd = &cobra.Command{
	Use:     "votesyncc",
	Version: config.Version,
	Short:   "votesyncc - A cli tool for the votesync daemon",
	Long:    "",
}

// RootCmd function
func RootCmd() *cobra.Command {
	return rootCmd
}

// Execute function
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&ip, "ip", "localhost", "daemon's ip address")
	rootCmd.PersistentFlags().StringVar(&port, "port", strconv.Itoa(int(config.Parameters.APIPort)), "daemon's api port")
}

// Address function
func Address() string {
	return "http://" + net.JoinHostPort(ip, port)
}

// FormatOutput function
func FormatOutput(o []byte) error {
	var out bytes.Buffer
	err := json.Indent(&out, o, "", "\t")
	if err != nil {
		return err
	}
	out.Write([]byte("\n"))
	_, err = out.WriteTo(os.Stdout)

	return err
}
