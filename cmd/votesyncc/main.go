package main

import (
	"log"

	cmd "github.com/remotechain/votesync/cmd/votesyncc/commands"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Fatalf("Panic: %+v", r)
		}
	}()

	cmd.Execute()
}
