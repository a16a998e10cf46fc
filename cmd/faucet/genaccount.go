package main

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

// genAccount prints a fresh faucet key pair. The key is printed once and
// never stored.
func genAccount(c *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "address:     %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Fprintf(c.App.Writer, "private key: 0x%s\n", hex.EncodeToString(crypto.FromECDSA(key)))
	return nil
}
