package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/edgeo-scada/snmptrap/snmp"
)

// newLogger returns a text logger on stderr, at debug level when verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseVersion parses the --version flag.
func parseVersion() (snmp.SNMPVersion, error) {
	return snmp.ParseVersion(version)
}

// newSender creates a sender from the global flags.
func newSender(metrics *snmp.Metrics) (*snmp.Sender, error) {
	v, err := parseVersion()
	if err != nil {
		return nil, err
	}
	opts := []snmp.SenderOption{
		snmp.WithSenderCommunity(community),
		snmp.WithSenderVersion(v),
		snmp.WithWriteTimeout(timeout),
		snmp.WithSenderLogger(newLogger()),
	}
	if metrics != nil {
		opts = append(opts, snmp.WithSenderMetrics(metrics))
	}
	return snmp.NewSender(opts...), nil
}

// flagTarget returns the destination given by --target and --port.
func flagTarget() (snmp.Target, error) {
	if target == "" {
		return snmp.Target{}, fmt.Errorf("target is required (use -t or --target)")
	}
	t := snmp.Target{Host: target, Port: port}
	if err := t.Validate(); err != nil {
		return snmp.Target{}, err
	}
	return t, nil
}

// parseVarbindFlag parses OID=TYPE:VALUE. Without a TYPE the value is sent
// as an OCTET STRING.
func parseVarbindFlag(s string) (snmp.Varbind, error) {
	oid, rest, ok := strings.Cut(s, "=")
	if !ok {
		return snmp.Varbind{}, fmt.Errorf("varbind %q: expected OID=TYPE:VALUE", s)
	}
	typeSpec, value, ok := strings.Cut(rest, ":")
	if !ok || len(typeSpec) != 1 {
		typeSpec, value = "s", rest
	}
	return snmp.ParseVarbind(oid, typeSpec, value)
}

// parseVarbindFlags parses every --varbind flag, keeping their order.
func parseVarbindFlags(flags []string) (snmp.VarbindList, error) {
	var list snmp.VarbindList
	for _, f := range flags {
		vb, err := parseVarbindFlag(f)
		if err != nil {
			return nil, err
		}
		if err := list.Append(vb); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
