package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/snmptrap/internal/transaction"
	"github.com/edgeo-scada/snmptrap/snmp"
)

var transactionCmd = &cobra.Command{
	Use:   "transaction-trap",
	Short: "Send a transaction status trap",
	Long: `Send one trap describing a transaction. Each non-empty field is sent as
an OCTET STRING varbind on its mapped OID. An empty --mid is replaced by a
random 8 character merchant ID.

The notification OID and the field mapping can be changed in the config file:

  transaction:
    notification-oid: 1.3.6.1.4.1.9.9.599.1.1
    mapping:
      status: 1.3.6.1.4.1.9.9.599.1.3.1
      amount: 1.3.6.1.4.1.9.9.599.1.3.3

Example:
  trapctl transaction-trap -t 10.0.0.5 --status settled --amount 12.50`,
	RunE: runTransactionTrap,
}

var transactionRecord transaction.Record

func init() {
	rootCmd.AddCommand(transactionCmd)

	f := transactionCmd.Flags()
	f.StringVar(&transactionRecord.Status, "status", "", "transaction status")
	f.StringVar(&transactionRecord.Type, "type", "", "transaction type")
	f.StringVar(&transactionRecord.Amount, "amount", "", "transaction amount")
	f.StringVar(&transactionRecord.Entity, "entity", "", "entity name")
	f.StringVar(&transactionRecord.MID, "mid", "", "merchant ID (default: random)")
	f.StringVar(&transactionRecord.DepositDatetime, "deposit-datetime", "", "deposit date and time")
	f.StringVar(&transactionRecord.OpenDatetime, "open-datetime", "", "open date and time")
	f.StringVar(&transactionRecord.CloseDatetime, "close-datetime", "", "close date and time")
	f.StringVar(&transactionRecord.SubmissionDatetime, "submission-datetime", "", "submission date and time")
}

func runTransactionTrap(cmd *cobra.Command, args []string) error {
	dst, err := flagTarget()
	if err != nil {
		return err
	}
	sender, err := newSender(nil)
	if err != nil {
		return err
	}
	v, err := parseVersion()
	if err != nil {
		return err
	}

	agent := transaction.NewAgent(sender, dst)
	agent.Version = v
	agent.Community = community

	if s := viper.GetString("transaction.notification-oid"); s != "" {
		oid, err := snmp.ParseOID(s)
		if err != nil {
			return fmt.Errorf("transaction.notification-oid: %w", err)
		}
		agent.NotificationOID = oid
	}
	if raw := viper.GetStringMapString("transaction.mapping"); len(raw) > 0 {
		if agent.Mapping, err = transaction.ParseMapping(raw); err != nil {
			return err
		}
	}

	n, err := agent.Notification(transactionRecord)
	if err != nil {
		return err
	}
	if err := sender.Send(cmd.Context(), dst, n); err != nil {
		return err
	}

	if outputFormat != string(FormatRaw) {
		fmt.Printf("%s transaction trap to %s (%d varbinds)\n", colorize("Sent", ColorGreen), dst, len(n.Varbinds))
	}
	return nil
}
