package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/snmptrap/internal/trapconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved trap configs",
	Long: `Save and inspect JSON trap configs. A saved config can be sent with
trap-send --trap-config.

The file format is:

  {
      "ipv4_host": "127.0.0.1",
      "port": "162",
      "notification_OID": "1.3.6.1.6.3.1.1.5.1",
      "varbinds": [{"1.3.6.1.2.1.1.1.0": "Device is up"}]
  }`,
}

var configSaveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Validate and write a trap config",
	Long: `Write a trap config from --target, --port, --oid and --message flags.
Nothing is written when validation fails.

Example:
  trapctl config save trap.json -t 127.0.0.1 -p 2162 --oid 1.3.6.1.6.3.1.1.5.1 \
    --message '1.3.6.1.2.1.1.1.0=Device is up'`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSave,
}

var configShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Validate and print a trap config",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

var (
	configOID      string
	configMessages []string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSaveCmd, configShowCmd)

	configSaveCmd.Flags().StringVar(&configOID, "oid", "", "notification OID")
	configSaveCmd.Flags().StringArrayVar(&configMessages, "message", nil, "varbind as OID=MESSAGE (repeatable, order kept)")
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	c := &trapconfig.Config{
		Host:            target,
		Port:            trapconfig.Port(strconv.Itoa(port)),
		NotificationOID: configOID,
	}
	for _, m := range configMessages {
		oid, msg, ok := strings.Cut(m, "=")
		if !ok {
			return fmt.Errorf("message %q: expected OID=MESSAGE", m)
		}
		c.Varbinds = append(c.Varbinds, trapconfig.Varbind{OID: oid, Message: msg})
	}

	if err := trapconfig.Save(args[0], c); err != nil {
		return err
	}
	printVerbose("Saved %d varbind(s) to %s", len(c.Varbinds), args[0])
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := trapconfig.Load(args[0])
	if err != nil {
		return err
	}

	if OutputFormat(outputFormat) == FormatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		return enc.Encode(c)
	}

	PrintSection("Trap config")
	PrintKeyValue("Host", c.Host)
	PrintKeyValue("Port", string(c.Port))
	PrintKeyValue("Notification OID", c.NotificationOID)

	if len(c.Varbinds) > 0 {
		PrintSection("Varbinds")
		table := NewTableWriter("#", "OID", "MESSAGE")
		for i, vb := range c.Varbinds {
			table.AddRow(strconv.Itoa(i+1), vb.OID, vb.Message)
		}
		table.Render(os.Stdout)
	}
	return nil
}
