package main

import (
	"context"
	"fmt"
	"os"

	"github.com/r3e-network/qvl/internal/certchain"
	"github.com/r3e-network/qvl/internal/intelclient"
	"github.com/r3e-network/qvl/pkg/qvl"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var (
		pinnedRootPath string
		crlPaths       []string
		pcsBaseURL     string
	)

	run := func(kind string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read quote file: %w", err)
			}

			var clientOpts []intelclient.Option
			if pcsBaseURL != "" {
				clientOpts = append(clientOpts, intelclient.WithBaseURL(pcsBaseURL))
			}
			client := intelclient.New(clientOpts...)

			cfg := qvl.Config{
				FetchTcbInfo: func(ctx context.Context, fmspc string) ([]byte, error) {
					return client.FetchTcbInfo(ctx, fmspc)
				},
				FetchQeIdentity: client.FetchQeIdentity,
			}

			if pinnedRootPath != "" {
				pem, err := os.ReadFile(pinnedRootPath)
				if err != nil {
					return fmt.Errorf("read pinned root: %w", err)
				}
				cfg.PinnedRootCerts = [][]byte{pem}
			}
			for _, p := range crlPaths {
				der, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("read crl %s: %w", p, err)
				}
				cfg.CRLs = append(cfg.CRLs, der)
			}

			log.WithField("file", path).Info("verifying quote")

			ctx := context.Background()
			var result *qvl.Result
			if kind == "sgx" {
				result, err = qvl.VerifySGX(ctx, raw, cfg)
			} else {
				result, err = qvl.VerifyTDX(ctx, raw, cfg)
			}
			if err != nil {
				log.WithError(err).Error("quote verification failed")
				return err
			}

			log.WithFields(map[string]interface{}{
				"fmspc":      result.Fmspc,
				"tcb_status": result.TcbStatus,
				"tcb_fresh":  result.TcbInfoFresh,
			}).Info("quote verified")
			fmt.Printf("OK fmspc=%s tcb_status=%s tcb_date=%s\n", result.Fmspc, result.TcbStatus, result.TcbDate.Format("2006-01-02"))
			return nil
		}
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a quote file",
	}
	verifyCmd.PersistentFlags().StringVar(&pinnedRootPath, "pinned-root", "",
		fmt.Sprintf("PEM file containing the trusted root CA certificate (fetch Intel's from %s)", certchain.DefaultRootHint))
	verifyCmd.PersistentFlags().StringSliceVar(&crlPaths, "crl", nil, "DER-encoded CRL file (repeatable)")
	verifyCmd.PersistentFlags().StringVar(&pcsBaseURL, "pcs-base-url", "", "override Intel PCS base URL for collateral fetches")

	sgxCmd := &cobra.Command{
		Use:   "sgx <quote-file>",
		Short: "Verify an SGX quote",
		Args:  cobra.ExactArgs(1),
		RunE:  run("sgx"),
	}
	tdxCmd := &cobra.Command{
		Use:   "tdx <quote-file>",
		Short: "Verify a TDX quote",
		Args:  cobra.ExactArgs(1),
		RunE:  run("tdx"),
	}

	verifyCmd.AddCommand(sgxCmd, tdxCmd)
	return verifyCmd
}
