// Signed mint validator and minter services and command-line interface.
//
// A validator signs, off-chain, an approval binding a recipient address to the live nonce (the number of tokens
// minted so far). The minter verifies that approval before minting, so every signature is good for exactly one
// mint. The two halves share no state: their only contract is the message encoding in mint_message.go.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := CreateRootCommand()
	if err := command.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
