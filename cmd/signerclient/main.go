// Operator CLI for the signing service: one subcommand per wire
// operation, speaking the framed protocol over vsock or a development TCP
// socket. Binary inputs and outputs are hex-encoded.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/enclave-signer/client"
	"github.com/ruteri/enclave-signer/cmd/flags"
	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/signer"
)

var cidFlag = &cli.UintFlag{
	Name:  "cid",
	Value: 3,
	Usage: "vsock context id of the signer enclave",
}

var portFlag = &cli.UintFlag{
	Name:  "port",
	Value: 2000,
	Usage: "vsock port of the signer",
}

var dialTCPFlag = &cli.StringFlag{
	Name:  "dial-tcp",
	Value: "",
	Usage: "dial a TCP address instead of vsock (development only)",
}

var timeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "per-request timeout",
}

var schemeFlag = &cli.StringFlag{
	Name:     "scheme",
	Required: true,
	Usage:    "signature scheme: ecdsa-secp256k1, ecdsa-p256, ed25519 or bls12-381",
}

var keyIDFlag = &cli.StringFlag{
	Name:     "key-id",
	Required: true,
	Usage:    "key identifier in UUID form",
}

var preHashedFlag = &cli.BoolFlag{
	Name:  "pre-hashed",
	Value: false,
	Usage: "the payload is an externally computed 32-byte digest (ECDSA only)",
}

func main() {
	app := &cli.App{
		Name:  "signerclient",
		Usage: "Talk to the enclave signing service",
		Flags: append([]cli.Flag{
			cidFlag,
			portFlag,
			dialTCPFlag,
			timeoutFlag,
		}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate a fresh key, printing its id",
				Flags: []cli.Flag{schemeFlag},
				Action: withClient(func(cCtx *cli.Context, c *client.Client) error {
					scheme, err := interfaces.ParseSchemeTag(cCtx.String(schemeFlag.Name))
					if err != nil {
						return err
					}
					id, err := c.GenerateKey(scheme)
					if err != nil {
						return err
					}
					fmt.Println(id)
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "Import a hex-encoded 32-byte secret, printing the assigned key id",
				ArgsUsage: "<secret-hex>",
				Flags:     []cli.Flag{schemeFlag},
				Action: withClient(func(cCtx *cli.Context, c *client.Client) error {
					scheme, err := interfaces.ParseSchemeTag(cCtx.String(schemeFlag.Name))
					if err != nil {
						return err
					}
					secret, err := hex.DecodeString(cCtx.Args().First())
					if err != nil {
						return fmt.Errorf("secret must be hex-encoded: %w", err)
					}
					id, err := c.ImportKey(scheme, secret)
					signer.Zeroize(secret)
					if err != nil {
						return err
					}
					fmt.Println(id)
					return nil
				}),
			},
			{
				Name:  "pubkey",
				Usage: "Fetch a key's scheme and public key",
				Flags: []cli.Flag{keyIDFlag},
				Action: withClient(func(cCtx *cli.Context, c *client.Client) error {
					id, err := interfaces.ParseKeyID(cCtx.String(keyIDFlag.Name))
					if err != nil {
						return err
					}
					scheme, pub, err := c.GetPublicKey(id)
					if err != nil {
						return err
					}
					fmt.Printf("%s %s\n", scheme, pub)
					return nil
				}),
			},
			{
				Name:      "sign",
				Usage:     "Sign a hex-encoded payload, printing the hex signature",
				ArgsUsage: "<payload-hex>",
				Flags:     []cli.Flag{keyIDFlag, preHashedFlag},
				Action: withClient(func(cCtx *cli.Context, c *client.Client) error {
					id, err := interfaces.ParseKeyID(cCtx.String(keyIDFlag.Name))
					if err != nil {
						return err
					}
					payload, err := hex.DecodeString(cCtx.Args().First())
					if err != nil {
						return fmt.Errorf("payload must be hex-encoded: %w", err)
					}
					var sig interfaces.Signature
					if cCtx.Bool(preHashedFlag.Name) {
						sig, err = c.SignPreHashed(id, payload)
					} else {
						sig, err = c.Sign(id, payload)
					}
					if err != nil {
						return err
					}
					fmt.Println(sig)
					return nil
				}),
			},
			{
				Name:  "delete",
				Usage: "Delete a key, zeroizing its secret",
				Flags: []cli.Flag{keyIDFlag},
				Action: withClient(func(cCtx *cli.Context, c *client.Client) error {
					id, err := interfaces.ParseKeyID(cCtx.String(keyIDFlag.Name))
					if err != nil {
						return err
					}
					return c.DeleteKey(id)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withClient(action func(*cli.Context, *client.Client) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		c, err := client.Dial(&client.Config{
			CID:     uint32(cCtx.Uint(cidFlag.Name)),
			Port:    uint32(cCtx.Uint(portFlag.Name)),
			DialTCP: cCtx.String(dialTCPFlag.Name),
			Timeout: cCtx.Duration(timeoutFlag.Name),
		})
		if err != nil {
			return err
		}
		defer c.Close()
		return action(cCtx, c)
	}
}
