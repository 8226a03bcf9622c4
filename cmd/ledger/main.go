// Command ledger operates a local UTXO ledger store from the command line.
//
// Usage:
//
//	ledger create-account
//	ledger coinbase --to <address> --amount <amount>
//	ledger send --key <private key hex> --to <address> --amount <amount>
//	ledger balance --address <address>
//
// The store location and logging come from the same configuration file and
// environment variables as the server (--config, PEBBLE_PATH, LOG_LEVEL, ...).
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/thanhnp/utxo-graph/internal/config"
	"github.com/thanhnp/utxo-graph/internal/crypto"
	"github.com/thanhnp/utxo-graph/internal/ledger"
	"github.com/thanhnp/utxo-graph/internal/logger"
	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	amountFlag := &cli.StringFlag{
		Name:     "amount",
		Usage:    "Amount in coins, e.g. 4 or 0.5",
		Required: true,
	}
	toFlag := &cli.StringFlag{
		Name:     "to",
		Usage:    "Recipient address",
		Required: true,
	}

	return &cli.App{
		Name:      "ledger",
		Usage:     "Operate a local UTXO ledger",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to configuration file",
				Value: "config.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "create-account",
				Usage:  "Generate a key pair and print its address",
				Action: createAccount,
			},
			{
				Name:   "coinbase",
				Usage:  "Mint a new output paying an address",
				Flags:  []cli.Flag{toFlag, amountFlag},
				Action: withLedger(coinbase),
			},
			{
				Name:  "send",
				Usage: "Send an amount from the key's address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Sender private key (hex)",
						EnvVars:  []string{"LEDGER_PRIVATE_KEY"},
						Required: true,
					},
					toFlag,
					amountFlag,
				},
				Action: withLedger(send),
			},
			{
				Name:  "balance",
				Usage: "Print the spendable balance of an address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Usage:    "Address to query",
						Required: true,
					},
				},
				Action: withLedger(balance),
			},
		},
	}
}

// withLedger opens the configured store for the duration of one command
func withLedger(action func(c *cli.Context, l *ledger.Ledger) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}

		log := zerolog.Nop()
		if cfg.Log.Level == "debug" {
			log = logger.NewWithWriter(c.App.ErrWriter, "cli", cfg.Log.Level, cfg.Log.Pretty)
		}

		db, err := storage.NewPebbleDB(cfg.Pebble.Path)
		if err != nil {
			return err
		}
		graph, err := ledger.OpenGraph(db)
		if err != nil {
			_ = db.Close()
			return err
		}
		defer graph.Close()

		return action(c, ledger.New(graph, log, ledger.WithMaxSpendRetries(cfg.Ledger.MaxSpendRetries)))
	}
}

func createAccount(c *cli.Context) error {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "address:     %s\n", key.Address())
	fmt.Fprintf(c.App.Writer, "public key:  %s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Fprintf(c.App.Writer, "private key: %s\n", hex.EncodeToString(key.PrivateKey()))
	return nil
}

func coinbase(c *cli.Context, l *ledger.Ledger) error {
	amount, err := models.ParseAmount(c.String("amount"))
	if err != nil {
		return err
	}

	tx, err := l.CreateCoinbase(c.Context, c.String("to"), amount)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "coinbase %s: %s -> %s\n", tx.Hash, amount, c.String("to"))
	return nil
}

func send(c *cli.Context, l *ledger.Ledger) error {
	key, err := crypto.KeyPairFromHex(c.String("key"))
	if err != nil {
		return err
	}
	amount, err := models.ParseAmount(c.String("amount"))
	if err != nil {
		return err
	}

	tx, err := l.Send(c.Context, key, c.String("to"), amount)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "sent %s: %s -> %s (%d inputs, %d outputs)\n",
		tx.Hash, amount, c.String("to"), len(tx.Vin), len(tx.Vout))
	return nil
}

func balance(c *cli.Context, l *ledger.Ledger) error {
	address := c.String("address")

	b, err := l.GetBalance(c.Context, address)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s %s\n", address, b)
	return nil
}
