// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edgeo-scada/snmptrap/snmp"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatRaw   OutputFormat = "raw"
)

// VarbindOutput represents a varbind for output.
type VarbindOutput struct {
	OID   string      `json:"oid"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// TrapOutput represents a trap for output.
type TrapOutput struct {
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	Community     string          `json:"community,omitempty"`
	SourceAddress string          `json:"source_address"`
	PDUType       string          `json:"pdu_type"`
	RequestID     int32           `json:"request_id,omitempty"`
	TrapOID       string          `json:"trap_oid"`
	Enterprise    string          `json:"enterprise,omitempty"`
	AgentAddress  string          `json:"agent_address,omitempty"`
	GenericTrap   int             `json:"generic_trap,omitempty"`
	SpecificTrap  int             `json:"specific_trap,omitempty"`
	Uptime        string          `json:"uptime,omitempty"`
	Varbinds      []VarbindOutput `json:"varbinds"`
}

// Formatter handles output formatting. Traps from several listeners may be
// written concurrently.
type Formatter struct {
	mu        sync.Mutex
	format    OutputFormat
	writer    io.Writer
	csvWriter *csv.Writer
	first     bool
}

// NewFormatter creates a new formatter writing to stdout.
func NewFormatter(format string) *Formatter {
	return newFormatter(format, os.Stdout)
}

func newFormatter(format string, w io.Writer) *Formatter {
	f := &Formatter{
		format: OutputFormat(format),
		writer: w,
		first:  true,
	}
	if f.format == FormatCSV {
		f.csvWriter = csv.NewWriter(w)
	}
	return f
}

// FormatTrap formats and prints a received trap.
func (f *Formatter) FormatTrap(trap *snmp.ReceivedTrap) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.format {
	case FormatJSON:
		f.formatTrapJSON(trap)
	case FormatCSV:
		f.formatTrapCSV(trap)
	case FormatRaw:
		f.formatTrapRaw(trap)
	default:
		f.formatTrapTable(trap)
	}
}

func (f *Formatter) formatTrapTable(trap *snmp.ReceivedTrap) {
	w := f.writer
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize("=== TRAP RECEIVED ===", ColorBold))
	fmt.Fprintf(w, "  %s: %s\n", colorize("Time", ColorCyan), trap.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  %s: %s\n", colorize("Source", ColorCyan), sourceString(trap.Source))
	fmt.Fprintf(w, "  %s: %s\n", colorize("Version", ColorCyan), trap.Version)
	fmt.Fprintf(w, "  %s: %s\n", colorize("Community", ColorCyan), trap.Community)
	fmt.Fprintf(w, "  %s: %s\n", colorize("Trap OID", ColorCyan), trap.TrapOID)

	if trap.Version == snmp.Version1 {
		fmt.Fprintf(w, "  %s: %s\n", colorize("Enterprise", ColorCyan), trap.Enterprise)
		fmt.Fprintf(w, "  %s: %s\n", colorize("Agent Address", ColorCyan), trap.AgentAddress)
		fmt.Fprintf(w, "  %s: %d\n", colorize("Generic Trap", ColorCyan), trap.GenericTrap)
		fmt.Fprintf(w, "  %s: %d\n", colorize("Specific Trap", ColorCyan), trap.SpecificTrap)
	}

	fmt.Fprintf(w, "  %s: %s\n", colorize("Uptime", ColorCyan), snmp.TimeTicksToString(trap.Uptime))

	if len(trap.Varbinds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorize("Varbinds:", ColorBold))
		for _, vb := range trap.Varbinds {
			fmt.Fprintf(w, "    %s = %s: %s\n",
				colorize(vb.OID.String(), ColorCyan),
				colorize(vb.Type.String(), ColorYellow),
				formatValue(vb))
		}
	}
	fmt.Fprintln(w)
}

func (f *Formatter) formatTrapJSON(trap *snmp.ReceivedTrap) {
	data, _ := json.Marshal(trapOutput(trap))
	fmt.Fprintln(f.writer, string(data))
}

func (f *Formatter) formatTrapCSV(trap *snmp.ReceivedTrap) {
	if f.first {
		f.csvWriter.Write([]string{"timestamp", "source", "version", "trap_oid", "oid", "type", "value"})
		f.first = false
	}
	for _, vb := range trap.Varbinds {
		f.csvWriter.Write([]string{
			trap.ReceivedAt.Format(time.RFC3339Nano),
			sourceString(trap.Source),
			trap.Version.String(),
			trap.TrapOID.String(),
			vb.OID.String(),
			vb.Type.String(),
			formatValue(vb),
		})
	}
	f.csvWriter.Flush()
}

func (f *Formatter) formatTrapRaw(trap *snmp.ReceivedTrap) {
	for _, vb := range trap.Varbinds {
		fmt.Fprintf(f.writer, "%s %s\n", vb.OID, formatValue(vb))
	}
}

// trapOutput converts a trap for JSON output.
func trapOutput(trap *snmp.ReceivedTrap) TrapOutput {
	out := TrapOutput{
		Timestamp:     trap.ReceivedAt,
		Version:       trap.Version.String(),
		Community:     trap.Community,
		SourceAddress: sourceString(trap.Source),
		PDUType:       trap.PDUType.String(),
		RequestID:     trap.RequestID,
		TrapOID:       trap.TrapOID.String(),
		Uptime:        snmp.TimeTicksToString(trap.Uptime),
		Varbinds:      []VarbindOutput{},
	}
	if trap.Version == snmp.Version1 {
		out.Enterprise = trap.Enterprise.String()
		out.AgentAddress = trap.AgentAddress.String()
		out.GenericTrap = trap.GenericTrap
		out.SpecificTrap = trap.SpecificTrap
	}
	for _, vb := range trap.Varbinds {
		out.Varbinds = append(out.Varbinds, VarbindOutput{
			OID:   vb.OID.String(),
			Type:  vb.Type.String(),
			Value: convertValue(vb),
		})
	}
	return out
}

func sourceString(addr *net.UDPAddr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// formatValue formats a varbind value for display.
func formatValue(vb snmp.Varbind) string {
	switch vb.Type {
	case snmp.TypeNull:
		return "NULL"

	case snmp.TypeOctetString:
		switch val := vb.Value.(type) {
		case []byte:
			// Print as string if printable, otherwise as hex
			if isPrintable(val) {
				return strconv.Quote(string(val))
			}
			return formatHex(val)
		case string:
			return strconv.Quote(val)
		default:
			return fmt.Sprintf("%v", vb.Value)
		}

	case snmp.TypeTimeTicks:
		if ticks, ok := vb.Value.(uint32); ok {
			return fmt.Sprintf("%d (%s)", ticks, snmp.TimeTicksToString(ticks))
		}
		return fmt.Sprintf("%v", vb.Value)

	default:
		return vb.ValueString()
	}
}

// convertValue converts a varbind value for JSON output.
func convertValue(vb snmp.Varbind) interface{} {
	switch vb.Type {
	case snmp.TypeNull:
		return nil

	case snmp.TypeOctetString:
		if val, ok := vb.Value.([]byte); ok {
			if isPrintable(val) {
				return string(val)
			}
			return formatHex(val)
		}
		return vb.Value

	case snmp.TypeObjectIdentifier, snmp.TypeIPAddress:
		return vb.ValueString()

	case snmp.TypeTimeTicks:
		if ticks, ok := vb.Value.(uint32); ok {
			return map[string]interface{}{
				"ticks":   ticks,
				"seconds": float64(ticks) / 100,
				"human":   snmp.TimeTicksToString(ticks),
			}
		}
		return vb.Value

	default:
		return vb.Value
	}
}

// isPrintable checks if bytes are printable ASCII.
func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}

// formatHex formats bytes as hex string.
func formatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// colorize wraps text with color codes.
func colorize(text, color string) string {
	if noColor {
		return text
	}
	return color + text + ColorReset
}

// TableWriter writes formatted tables.
type TableWriter struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTableWriter creates a new table writer.
func NewTableWriter(headers ...string) *TableWriter {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &TableWriter{
		headers: headers,
		widths:  widths,
	}
}

// AddRow adds a row to the table.
func (t *TableWriter) AddRow(values ...string) {
	for i, v := range values {
		if i < len(t.widths) && len(v) > t.widths[i] {
			t.widths[i] = len(v)
		}
	}
	t.rows = append(t.rows, values)
}

// Render renders the table to w.
func (t *TableWriter) Render(w io.Writer) {
	for i, h := range t.headers {
		// Pad before colorizing so escape codes do not count toward the width.
		fmt.Fprint(w, colorize(fmt.Sprintf("%-*s", t.widths[i], h), ColorBold)+"  ")
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", t.widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, v := range row {
			if i < len(t.widths) {
				fmt.Fprintf(w, "%-*s  ", t.widths[i], v)
			}
		}
		fmt.Fprintln(w)
	}
}

// PrintKeyValue prints a key-value pair formatted nicely.
func PrintKeyValue(key, value string) {
	fmt.Printf("  %-20s %s\n", colorize(key+":", ColorCyan), value)
}

// PrintSection prints a section header.
func PrintSection(title string) {
	fmt.Printf("\n%s\n", colorize(title, ColorBold))
	fmt.Println(strings.Repeat("-", len(title)))
}
