package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qvlctl",
		Short: "Verify Intel DCAP SGX/TDX attestation quotes",
		Long:  `qvlctl decodes and verifies Intel DCAP ECDSA-P256 SGX and TDX quotes against a certificate chain and TCB/QE identity collateral.`,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.qvlctl.yaml)")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)
	root.AddCommand(newVerifyCmd())
	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".qvlctl")
		viper.AddConfigPath("$HOME")
	}
	viper.SetEnvPrefix("QVLCTL")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	if viper.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}
}
