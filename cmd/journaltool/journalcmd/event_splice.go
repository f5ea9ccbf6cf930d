package journalcmd

import (
	"context"
	"sort"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/journal"
	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdEventSplice struct {
	FilterConfig
}

func init() {
	EventRegisterCommands = append(EventRegisterCommands, AddCmdEventSplice)
}

func AddCmdEventSplice(cmd *flags.Command) error {
	_, err := cmd.AddCommand("splice", "Erase matched entries from the journal", `
Splice zero-fills the journal bytes of every entry matching the configured
filter predicates. Erased regions no longer frame as entries: subsequent
scans skip them and report them as invalid ranges, and replay never sees
them.

Splice is the surgical remedy for a poisoned entry which crashes the file
system on replay: erase exactly that entry and leave the rest of the journal
intact. It requires a valid header; run 'journal inspect' first to recover
one. At least one filter predicate is required, as splicing an unfiltered
journal is equivalent to 'journal reset' with more steps and less safety.
`, &cmdEventSplice{})
	return err
}

func (cmd *cmdEventSplice) Execute([]string) error {
	startup()

	var filter, err = cmd.buildFilter()
	mbp.Must(err, "invalid filter argument")
	if (cmd.FilterConfig == FilterConfig{}) {
		mbp.Must(journal.ErrInvalidArgument, "refusing to splice every entry; provide at least one filter predicate")
	}

	var ctx = context.Background()
	var j = openJournal()

	result, err := j.Recover(ctx, filter)
	mbp.Must(err, "failed to scan journal")

	if !result.IsHealthy() {
		log.WithFields(log.Fields{
			"objectsMissing": len(result.ObjectsMissing),
			"rangesInvalid":  len(result.RangesInvalid),
		}).Warn("journal is unhealthy; splicing only entries which remain readable")
	}

	var offsets = make([]uint64, 0, len(result.Events))
	for pos := range result.Events {
		offsets = append(offsets, pos)
	}
	sort.Slice(offsets, func(a, b int) bool { return offsets[a] < offsets[b] })

	for _, pos := range offsets {
		var size = uint64(result.Events[pos].RawSize)
		mbp.Must(j.EraseRegion(ctx, result.Header, pos, size),
			"failed to erase entry", "offset", pos)
	}

	log.WithField("entries", len(offsets)).Info("spliced journal entries")
	return nil
}
