package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ruteri/decision-ledger/api"
	"github.com/ruteri/decision-ledger/api/clients"
	"github.com/ruteri/decision-ledger/cmd/flags"
	"github.com/ruteri/decision-ledger/fingerprint"
	"github.com/ruteri/decision-ledger/guard"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/urfave/cli/v2"
)

var flagText = &cli.StringFlag{
	Name:     "text",
	Required: true,
	Usage:    "input text of the decision",
}
var flagOutput = &cli.StringFlag{
	Name:     "output",
	Required: true,
	Usage:    "output value of the decision",
}
var flagMetadata = &cli.StringFlag{
	Name:     "metadata",
	Required: true,
	Usage:    "model metadata as JSON, or @file to read it from a file",
}
var flagDecisionID = &cli.StringFlag{
	Name:  "decision-id",
	Usage: "decision id, assigned by the server when empty",
}

const usage string = `Fingerprint, register and verify AI decisions against a decision ledger server.`

func main() {
	app := &cli.App{
		Name:  "decisionctl",
		Usage: usage,
		Flags: []cli.Flag{
			flags.ServerURLFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "show server and ledger status",
				Action: func(cCtx *cli.Context) error {
					return NewClientConfig(cCtx).Health(cCtx.Context)
				},
			},
			{
				Name:  "infer",
				Usage: "run inference and register the resulting decision",
				Flags: []cli.Flag{flagText},
				Action: func(cCtx *cli.Context) error {
					return NewClientConfig(cCtx).InferAndProve(cCtx.Context, cCtx.String(flagText.Name))
				},
			},
			{
				Name:  "prove",
				Usage: "register a decision",
				Flags: []cli.Flag{flagText, flagOutput, flagMetadata, flagDecisionID},
				Action: func(cCtx *cli.Context) error {
					meta, err := readMetadata(cCtx.String(flagMetadata.Name))
					if err != nil {
						return err
					}
					return NewClientConfig(cCtx).Prove(cCtx.Context, &api.GenerateProofRequest{
						InputText:     cCtx.String(flagText.Name),
						OutputValue:   cCtx.String(flagOutput.Name),
						ModelMetadata: meta,
						DecisionID:    cCtx.String(flagDecisionID.Name),
					})
				},
			},
			{
				Name:  "verify",
				Usage: "verify a decision against the ledger",
				Flags: []cli.Flag{flagText, flagOutput, flagMetadata, &cli.StringFlag{
					Name:     flagDecisionID.Name,
					Required: true,
					Usage:    "decision id to verify",
				}},
				Action: func(cCtx *cli.Context) error {
					meta, err := readMetadata(cCtx.String(flagMetadata.Name))
					if err != nil {
						return err
					}
					return NewClientConfig(cCtx).Verify(cCtx.Context, &api.VerifyRequest{
						DecisionID:    cCtx.String(flagDecisionID.Name),
						InputText:     cCtx.String(flagText.Name),
						OutputValue:   cCtx.String(flagOutput.Name),
						ModelMetadata: meta,
					})
				},
			},
			{
				Name:  "fingerprint",
				Usage: "compute a decision fingerprint locally, without contacting the server",
				Flags: []cli.Flag{flagText, flagOutput, flagMetadata},
				Action: func(cCtx *cli.Context) error {
					meta, err := readMetadata(cCtx.String(flagMetadata.Name))
					if err != nil {
						return err
					}
					fp, err := LocalFingerprint(cCtx.String(flagText.Name), cCtx.String(flagOutput.Name), meta)
					if err != nil {
						return err
					}
					fmt.Println(fp)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type Client struct {
	Provider clients.DecisionProvider
	Out      io.Writer
}

func NewClientConfig(cCtx *cli.Context) *Client {
	return &Client{
		Provider: &clients.DecisionClient{ServerAddr: strings.TrimRight(cCtx.String(flags.ServerURLFlag.Name), "/")},
		Out:      os.Stdout,
	}
}

func (c *Client) print(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *Client) Health(ctx context.Context) error {
	resp, err := c.Provider.Health(ctx)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	return c.print(resp)
}

func (c *Client) Prove(ctx context.Context, req *api.GenerateProofRequest) error {
	resp, err := c.Provider.GenerateProof(ctx, req)
	if err != nil {
		return fmt.Errorf("proof generation failed: %w", err)
	}
	return c.print(resp)
}

// InferAndProve runs inference on text and registers the prediction as the decision output.
func (c *Client) InferAndProve(ctx context.Context, text string) error {
	inferred, err := c.Provider.Inference(ctx, text)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	output, err := outputValue(inferred.Prediction)
	if err != nil {
		return err
	}

	proof, err := c.Provider.GenerateProof(ctx, &api.GenerateProofRequest{
		InputText:     inferred.InputText,
		OutputValue:   output,
		ModelMetadata: inferred.ModelMetadata,
	})
	if err != nil {
		return fmt.Errorf("proof generation failed: %w", err)
	}

	return c.print(map[string]any{
		"inference": inferred,
		"proof":     proof,
	})
}

// Verify prints the verification and fails when the decision is not authentic.
func (c *Client) Verify(ctx context.Context, req *api.VerifyRequest) error {
	resp, err := c.Provider.Verify(ctx, req)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if err := c.print(resp); err != nil {
		return err
	}
	if !resp.IsValid {
		return fmt.Errorf("decision %s is not authentic: %s", resp.DecisionID, resp.Outcome)
	}
	return nil
}

// outputValue picks the decision output from a prediction: the "prediction"
// member of an object, or the prediction itself when it is a string.
func outputValue(prediction json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(prediction, &s); err == nil && s != "" {
		return s, nil
	}

	var obj struct {
		Prediction string `json:"prediction"`
	}
	if err := json.Unmarshal(prediction, &obj); err == nil && obj.Prediction != "" {
		return obj.Prediction, nil
	}
	return "", errors.New("prediction has no textual output")
}

func readMetadata(value string) (json.RawMessage, error) {
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read metadata file: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("metadata is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// LocalFingerprint computes the fingerprint the server would compute for the
// decision, including the trimming applied to top-level request strings.
func LocalFingerprint(text, output string, metadata json.RawMessage) (string, error) {
	text, output = guard.TrimString(text), guard.TrimString(output)

	var meta interfaces.ModelMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return "", fmt.Errorf("could not parse metadata: %w", err)
	}
	fp, err := fingerprint.Compute(interfaces.NewFingerprintInput(fingerprint.HashInput(text), output, meta))
	if err != nil {
		return "", err
	}
	return fp.String(), nil
}
