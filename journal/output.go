package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	humanize "github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

// Outputter renders a completed scan in the formats the tool's subcommands
// expose: a human-readable summary table, a one-line-per-entry listing,
// machine-readable JSON, and the raw envelope bytes.
type Outputter struct {
	Journal Journal
	Scan    *ScanResult
}

// Summary renders the scan's health report as a table.
func (o Outputter) Summary(w io.Writer) {
	var table = tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	table.Append([]string{"Header present", strconv.FormatBool(o.Scan.HeaderPresent)})
	table.Append([]string{"Header valid", strconv.FormatBool(o.Scan.HeaderValid)})

	if h := o.Scan.Header; h != nil {
		table.Append([]string{"Trim offset", fmt.Sprintf("%#x", h.Trim)})
		table.Append([]string{"Expire offset", fmt.Sprintf("%#x", h.Expire)})
		table.Append([]string{"Write offset", fmt.Sprintf("%#x", h.Write)})
		table.Append([]string{"Stride size", humanize.IBytes(h.StrideSize)})
	}

	table.Append([]string{"Objects scanned", strconv.Itoa(len(o.Scan.ObjectsValid))})
	table.Append([]string{"Objects missing", strconv.Itoa(len(o.Scan.ObjectsMissing))})
	table.Append([]string{"Invalid ranges", strconv.Itoa(len(o.Scan.RangesInvalid))})
	table.Append([]string{"Valid entries", strconv.Itoa(len(o.Scan.EventsValid))})
	table.Append([]string{"Matched entries", strconv.Itoa(len(o.Scan.Events))})
	table.Append([]string{"Healthy", strconv.FormatBool(o.Scan.IsHealthy())})

	table.Render()

	for _, r := range o.Scan.RangesInvalid {
		fmt.Fprintf(w, "invalid range: [%#x, %#x) (%s)\n",
			r.Start, r.End, humanize.IBytes(r.End-r.Start))
	}
	for _, idx := range o.Scan.ObjectsMissing {
		fmt.Fprintf(w, "missing object: %s\n", StrideObject(o.Journal.Rank, idx))
	}
}

// List writes one line per matched entry, in stream order.
func (o Outputter) List(w io.Writer) {
	for _, pos := range o.sortedOffsets() {
		var e = o.Scan.Events[pos].Entry

		fmt.Fprintf(w, "%#x %s", pos, e.Type)
		if e.Client != "" {
			fmt.Fprintf(w, " %s", e.Client)
		}
		if e.Detail != "" {
			fmt.Fprintf(w, ": %s", e.Detail)
		}
		fmt.Fprintln(w)
	}
}

// JSON writes the full scan result as indented JSON.
func (o Outputter) JSON(w io.Writer) error {
	var b, err = json.MarshalIndent(o.Scan, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding scan result")
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Binary re-reads and writes the raw envelope bytes of each matched entry,
// concatenated in stream order.
func (o Outputter) Binary(ctx context.Context, w io.Writer) error {
	if !o.Scan.HeaderValid {
		return errors.Wrap(ErrInvalidArgument, "binary output requires a valid header")
	}
	for _, pos := range o.sortedOffsets() {
		var raw, err = o.Journal.readRaw(
			ctx, o.Scan.Header, pos, uint64(o.Scan.Events[pos].RawSize))
		if err != nil {
			return err
		}
		if _, err = w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}

func (o Outputter) sortedOffsets() []uint64 {
	var offsets = make([]uint64, 0, len(o.Scan.Events))
	for pos := range o.Scan.Events {
		offsets = append(offsets, pos)
	}
	sort.Slice(offsets, func(a, b int) bool { return offsets[a] < offsets[b] })
	return offsets
}
