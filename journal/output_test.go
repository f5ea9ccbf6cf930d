package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scannedFixture(t *testing.T) (*journalFixture, *ScanResult) {
	var f = newJournalFixture(64)
	f.append(t, Entry{Type: EventUpdate, Client: "client.4121", Detail: "rename"})
	f.append(t, Entry{Type: EventNoOp})
	f.seal(t)

	var s = f.NewScanner(nil)
	require.NoError(t, s.Scan(context.Background()))
	return f, s.Result()
}

func TestOutputterList(t *testing.T) {
	var f, result = scannedFixture(t)
	var buf bytes.Buffer

	Outputter{Journal: f.Journal, Scan: result}.List(&buf)

	assert.Equal(t, fmt.Sprintf("%#x update client.4121: rename\n%#x noop\n",
		f.offsets[0], f.offsets[1]), buf.String())
}

func TestOutputterJSONFieldStability(t *testing.T) {
	var f, result = scannedFixture(t)
	var buf bytes.Buffer

	require.NoError(t, Outputter{Journal: f.Journal, Scan: result}.JSON(&buf))

	// Decoded field names are the scan report's wire contract.
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	for _, field := range []string{
		"header_present", "header_valid", "header",
		"objects_valid", "objects_missing", "ranges_invalid",
		"events_valid", "events",
	} {
		assert.Contains(t, report, field)
	}
	assert.Equal(t, true, report["header_valid"])
}

func TestOutputterBinaryReEmitsRawEnvelopes(t *testing.T) {
	var f, result = scannedFixture(t)
	var buf bytes.Buffer

	require.NoError(t, Outputter{Journal: f.Journal, Scan: result}.Binary(context.Background(), &buf))

	// Expect the exact stream bytes, reconstructible from the entries.
	var expect []byte
	for i, pos := range f.offsets {
		var payload, err = result.Events[pos].Entry.Encode()
		require.NoError(t, err)
		expect = EncodeEnvelope(expect, pos, payload)
		assert.Equal(t, f.sizes[i], uint32(len(payload)+EnvelopeOverhead))
	}
	assert.Equal(t, expect, buf.Bytes())
}

func TestOutputterSummaryRendersHealth(t *testing.T) {
	var f, result = scannedFixture(t)
	var buf bytes.Buffer

	Outputter{Journal: f.Journal, Scan: result}.Summary(&buf)

	assert.Contains(t, buf.String(), "Healthy")
	assert.Contains(t, buf.String(), "true")
}
