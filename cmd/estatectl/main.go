package main

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"time"

	"github.com/layer-3/estate/adapters/chain"
	"github.com/layer-3/estate/adapters/signature"
	"github.com/layer-3/estate/config"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/logging"
	"github.com/layer-3/estate/service"
	"github.com/urfave/cli/v2"
)

type globalConfig struct {
	rpcURL         string
	factory        string
	paymentToken   string
	keystore       string
	confirmTimeout time.Duration
	logLevel       string
}

func main() {
	cfg := &globalConfig{}

	app := &cli.App{
		Name:  "estatectl",
		Usage: "Participant tooling for on-chain properties",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "rpc-url",
				Usage:       "The URL of the node to connect to",
				Value:       config.DefaultRPCURL,
				EnvVars:     []string{"SEPOLIA_RPC_URL"},
				Destination: &cfg.rpcURL,
			},
			&cli.StringFlag{
				Name:        "factory",
				Usage:       "Property factory contract address",
				EnvVars:     []string{"PROPERTY_FACTORY_CONTRACT_ADDRESS"},
				Destination: &cfg.factory,
			},
			&cli.StringFlag{
				Name:        "payment-token",
				Usage:       "Payment token contract address",
				EnvVars:     []string{"PAYMENT_TOKEN_CONTRACT_ADDRESS"},
				Destination: &cfg.paymentToken,
			},
			&cli.StringFlag{
				Name:        "keystore",
				Usage:       "Encrypted keystore file of the participant wallet",
				EnvVars:     []string{"ESTATE_KEYSTORE"},
				Destination: &cfg.keystore,
			},
			&cli.DurationFlag{
				Name:        "confirm-timeout",
				Usage:       "How long to wait for each confirmation (0 waits forever)",
				Value:       config.DefaultConfirmTimeout,
				EnvVars:     []string{"CONFIRM_TIMEOUT"},
				Destination: &cfg.confirmTimeout,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "warn",
				EnvVars:     []string{"LOG_LEVEL"},
				Destination: &cfg.logLevel,
			},
		},
		Commands: []*cli.Command{
			listCommand(cfg),
			detailsCommand(cfg),
			purchaseCommand(cfg),
			claimCommand(cfg),
			signChallengeCommand(cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// services dials the node without an admin key; estatectl only ever signs
// with the participant wallet
func (g *globalConfig) services(c *cli.Context) (*chain.Client, *service.PropertyService, *service.SettlementService, error) {
	logger := logging.Setup("estatectl", logging.Options{Level: g.logLevel, Output: os.Stderr})

	client, err := chain.Dial(c.Context, chain.Config{
		RPCURL:              g.rpcURL,
		FactoryAddress:      g.factory,
		PaymentTokenAddress: g.paymentToken,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect: %w", err)
	}

	properties := service.NewPropertyService(client, logger)
	settlement := service.NewSettlementService(client, nil, nil, service.SettlementOptions{
		ConfirmTimeout: g.confirmTimeout,
		Logger:         logger,
	})
	return client, properties, settlement, nil
}

func listCommand(g *globalConfig) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List every property deployed by the factory",
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()
			c.Context = ctx

			client, properties, _, err := g.services(c)
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := properties.ListDeployedAddresses(ctx)
			if err != nil {
				return err
			}
			for _, addr := range result.Addresses {
				fmt.Println(core.Checksum(addr))
			}
			for _, skipped := range result.Skipped {
				fmt.Fprintf(os.Stderr, "skipped index %d: %s\n", skipped.Index, skipped.Reason)
			}
			return nil
		},
	}
}

func detailsCommand(g *globalConfig) *cli.Command {
	return &cli.Command{
		Name:      "details",
		Usage:     "Show the on-chain state of a property",
		ArgsUsage: "<property-address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one property address")
			}
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()
			c.Context = ctx

			client, properties, _, err := g.services(c)
			if err != nil {
				return err
			}
			defer client.Close()

			rec, err := properties.GetPropertyDetails(ctx, c.Args().First())
			if err != nil {
				return err
			}

			price := rec.PricePerToken.String()
			if info, err := properties.PaymentTokenInfo(ctx); err == nil && info.Address == rec.PaymentToken {
				price = core.FormatUnits(rec.PricePerToken, info.Decimals) + " " + info.Symbol
			}

			fmt.Println("Address:        ", core.Checksum(rec.Address))
			fmt.Println("Owner:          ", core.Checksum(rec.Owner))
			fmt.Println("URI:            ", rec.URI)
			fmt.Println("Metadata URI:   ", rec.MetadataURI)
			fmt.Printf("Metadata hash:   0x%x\n", rec.MetadataHash)
			fmt.Println("Payment token:  ", core.Checksum(rec.PaymentToken))
			fmt.Println("Price per token:", price)
			fmt.Println("Tokens sold:    ", rec.TokensSold.String(), "/", rec.TotalTokens.String())
			fmt.Printf("Annual return:   %d bp\n", rec.AnnualReturnBP)
			fmt.Println("Yield deposited:", rec.TotalYieldDeposited.String())
			return nil
		},
	}
}

func purchaseCommand(g *globalConfig) *cli.Command {
	return &cli.Command{
		Name:      "purchase",
		Usage:     "Buy property tokens with the keystore wallet",
		ArgsUsage: "<property-address> <amount>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("expected a property address and an amount")
			}
			amount, ok := new(big.Int).SetString(c.Args().Get(1), 10)
			if !ok {
				return fmt.Errorf("amount must be a base-10 integer")
			}

			w, err := loadWallet(g.keystore)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()
			c.Context = ctx

			client, _, settlement, err := g.services(c)
			if err != nil {
				return err
			}
			defer client.Close()

			signer, err := client.ParticipantSigner(w.PrivateKey)
			if err != nil {
				return err
			}

			result, err := settlement.PurchaseTokens(ctx, c.Args().First(), amount, signer)
			if err != nil {
				return describe(err)
			}

			fmt.Println("Buyer:   ", core.Checksum(w.Address))
			fmt.Println("Cost:    ", result.Cost.String())
			if result.Approval != nil {
				fmt.Println("Approval:", result.Approval.TxHash, result.Approval.State)
			}
			fmt.Println("Purchase:", result.Purchase.TxHash, result.Purchase.State)
			return nil
		},
	}
}

func claimCommand(g *globalConfig) *cli.Command {
	return &cli.Command{
		Name:      "claim",
		Usage:     "Claim accrued yield with the keystore wallet",
		ArgsUsage: "<property-address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one property address")
			}

			w, err := loadWallet(g.keystore)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()
			c.Context = ctx

			client, _, settlement, err := g.services(c)
			if err != nil {
				return err
			}
			defer client.Close()

			signer, err := client.ParticipantSigner(w.PrivateKey)
			if err != nil {
				return err
			}

			outcome, err := settlement.ClaimYield(ctx, c.Args().First(), signer)
			if err != nil {
				return describe(err)
			}

			fmt.Println("Claim:", outcome.TxHash, outcome.State)
			return nil
		},
	}
}

func signChallengeCommand(g *globalConfig) *cli.Command {
	return &cli.Command{
		Name:      "sign-challenge",
		Usage:     "Sign a login challenge message with the keystore wallet",
		ArgsUsage: "<message>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected the challenge message as a single argument")
			}

			w, err := loadWallet(g.keystore)
			if err != nil {
				return err
			}

			sig, err := signature.Sign(c.Args().First(), w.PrivateKey)
			if err != nil {
				return err
			}

			fmt.Println("Address:  ", core.Checksum(w.Address))
			fmt.Println("Signature:", sig)
			return nil
		},
	}
}

// describe points at the submitted transaction when a settlement failed after
// it reached the network
func describe(err error) error {
	var se *core.SettlementError
	if errors.As(err, &se) && se.TxHash != "" {
		return fmt.Errorf("%w\ntransaction %s was submitted (state %s); check it before retrying", err, se.TxHash, se.State)
	}
	return err
}
