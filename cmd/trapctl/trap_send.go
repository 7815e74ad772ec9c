package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/snmptrap/internal/trapconfig"
	"github.com/edgeo-scada/snmptrap/snmp"
)

var trapSendCmd = &cobra.Command{
	Use:   "trap-send",
	Short: "Send an SNMP trap",
	Long: `Send one SNMPv1 or SNMPv2c trap.

The trap is described either by flags or by a saved JSON trap config
(--trap-config). Varbinds keep the order in which they are given and
duplicate OIDs are sent as given.

Varbind format is OID=TYPE:VALUE. TYPE is one of:
  i  INTEGER          u  Gauge32         c  Counter32
  C  Counter64        t  TimeTicks       s  OCTET STRING
  x  hex string       d  decimal string  n  NULL
  o  OBJECT IDENTIFIER                   a  IpAddress
Without TYPE the value is sent as an OCTET STRING.

A trap is unconfirmed: success means the datagram was handed to the local
network stack, not that a manager received it.

Examples:
  trapctl trap-send -t 127.0.0.1 -p 2162 --oid 1.3.6.1.6.3.1.1.5.1 \
    --varbind '1.3.6.1.2.1.1.1.0=s:Device is up'

  # SNMPv1 enterprise-specific trap
  trapctl trap-send -V 1 -t 10.0.0.5 --oid 1.3.6.1.4.1.9.9.599.0.3 \
    --agent-address 10.0.0.1

  # Send a saved config, overriding the community
  trapctl trap-send --trap-config trap.json -c private`,
	RunE: runTrapSend,
}

var (
	sendTrapConfig   string
	sendTrapOID      string
	sendVarbinds     []string
	sendUptime       uint32
	sendEnterprise   string
	sendGeneric      int
	sendSpecific     int
	sendAgentAddress string
	sendCount        int
	sendInterval     time.Duration
)

func init() {
	rootCmd.AddCommand(trapSendCmd)

	trapSendCmd.Flags().StringVar(&sendTrapConfig, "trap-config", "", "saved JSON trap config to send")
	trapSendCmd.Flags().StringVar(&sendTrapOID, "oid", "", "notification OID (snmpTrapOID.0)")
	trapSendCmd.Flags().StringArrayVar(&sendVarbinds, "varbind", nil, "varbind as OID=TYPE:VALUE (repeatable, order kept)")
	trapSendCmd.Flags().Uint32Var(&sendUptime, "uptime", 0, "sysUpTime in TimeTicks (default: time since start)")
	trapSendCmd.Flags().StringVar(&sendEnterprise, "enterprise", "", "v1 enterprise OID (default: derived from --oid)")
	trapSendCmd.Flags().IntVar(&sendGeneric, "generic", snmp.GenericEnterpriseSpecific, "v1 generic-trap, used with --enterprise")
	trapSendCmd.Flags().IntVar(&sendSpecific, "specific", 0, "v1 specific-trap, used with --enterprise")
	trapSendCmd.Flags().StringVar(&sendAgentAddress, "agent-address", "", "v1 agent-addr (default 0.0.0.0)")
	trapSendCmd.Flags().IntVar(&sendCount, "count", 1, "number of traps to send")
	trapSendCmd.Flags().DurationVar(&sendInterval, "interval", time.Second, "delay between traps when --count > 1")
}

func runTrapSend(cmd *cobra.Command, args []string) error {
	sender, err := newSender(nil)
	if err != nil {
		return err
	}

	dst, n, err := buildSendRequest(sender)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	for i := 0; i < sendCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sendInterval):
			}
		}
		start := time.Now()
		if err := sender.Send(ctx, dst, n); err != nil {
			return err
		}
		printVerbose("Sent %s trap %s to %s in %s", n.Version, n.TrapOID, dst, formatDuration(time.Since(start)))
	}

	if outputFormat != string(FormatRaw) {
		fmt.Printf("%s %d trap(s) to %s\n", colorize("Sent", ColorGreen), sendCount, dst)
	}
	return nil
}

// buildSendRequest merges the saved config, if any, with the flags.
// Flags given on the command line win over the saved config.
func buildSendRequest(sender *snmp.Sender) (snmp.Target, snmp.Notification, error) {
	var (
		dst snmp.Target
		n   snmp.Notification
	)

	if sendTrapConfig != "" {
		cfg, err := trapconfig.Load(sendTrapConfig)
		if err != nil {
			return dst, n, err
		}
		if dst, err = cfg.Target(); err != nil {
			return dst, n, err
		}
		v, err := parseVersion()
		if err != nil {
			return dst, n, err
		}
		if n, err = cfg.Notification(v, community); err != nil {
			return dst, n, err
		}
		if target != "" {
			dst.Host = target
		}
		if rootCmd.PersistentFlags().Changed("port") {
			dst.Port = port
		}
	} else {
		var err error
		if dst, err = flagTarget(); err != nil {
			return dst, n, err
		}
		if sendTrapOID == "" {
			return dst, n, fmt.Errorf("notification OID is required (use --oid or --trap-config)")
		}
		n = sender.NewNotification(nil)
	}

	if sendTrapOID != "" {
		oid, err := snmp.ParseOID(sendTrapOID)
		if err != nil {
			return dst, n, fmt.Errorf("--oid: %w", err)
		}
		n.TrapOID = oid
	}

	extra, err := parseVarbindFlags(sendVarbinds)
	if err != nil {
		return dst, n, err
	}
	n.Varbinds = append(n.Varbinds, extra...)
	n.Uptime = sendUptime

	if sendEnterprise != "" {
		oid, err := snmp.ParseOID(sendEnterprise)
		if err != nil {
			return dst, n, fmt.Errorf("--enterprise: %w", err)
		}
		n.Enterprise, n.GenericTrap, n.SpecificTrap = oid, sendGeneric, sendSpecific
	}
	if sendAgentAddress != "" {
		ip := net.ParseIP(sendAgentAddress)
		if ip == nil || ip.To4() == nil {
			return dst, n, fmt.Errorf("--agent-address: %w: %q", snmp.ErrInvalidAddress, sendAgentAddress)
		}
		n.AgentAddress = ip
	}

	if err := dst.Validate(); err != nil {
		return dst, n, err
	}
	return dst, n, nil
}
