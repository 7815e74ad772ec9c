package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile   string
	target    string
	port      int
	community string
	version   string
	timeout   time.Duration

	// Output flags
	outputFormat string
	verbose      bool
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "trapctl",
	Short: "SNMP trap sender and receiver",
	Long: `trapctl sends and receives SNMPv1 and SNMPv2c traps.

Supports:
  - Sending traps from flags or from a saved JSON trap config
  - Transaction status traps with a configurable field-to-OID mapping
  - Receiving traps on IPv4 and IPv6 at the same time
  - Journaling received traps to SQLite and exposing Prometheus metrics

Examples:
  # Send a coldStart trap with one varbind
  trapctl trap-send -t 127.0.0.1 -p 2162 --oid 1.3.6.1.6.3.1.1.5.1 \
    --varbind '1.3.6.1.2.1.1.1.0=s:Device is up'

  # Send the trap described by a saved config
  trapctl trap-send --trap-config trap.json

  # Listen for traps and keep a journal
  trapctl trap-listen --port 1162 --journal traps.db`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is $HOME/.trapctl.yaml)")
	rootCmd.PersistentFlags().StringVarP(&target, "target", "t", "", "trap destination IPv4 or IPv6 address")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 162, "trap port")
	rootCmd.PersistentFlags().StringVarP(&community, "community", "c", "public", "community string")
	rootCmd.PersistentFlags().StringVarP(&version, "version", "V", "2c", "SNMP version (1, 2c)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "socket write timeout")

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, csv, raw")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	for _, name := range []string{"target", "port", "community", "version", "timeout", "output", "verbose", "no-color"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(filepath.Join(home, ".config"))
		}
		viper.SetConfigName(".trapctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRAPCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	target = viper.GetString("target")
	port = viper.GetInt("port")
	community = viper.GetString("community")
	version = viper.GetString("version")
	timeout = viper.GetDuration("timeout")
	outputFormat = viper.GetString("output")
	verbose = viper.GetBool("verbose")
	noColor = viper.GetBool("no-color")
}
