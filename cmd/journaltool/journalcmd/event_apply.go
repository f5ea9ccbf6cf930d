package journalcmd

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	mbp "github.com/sennajox/journaltool/mainboilerplate"
	"github.com/sennajox/journaltool/metastore"
)

type cmdEventApply struct {
	FilterConfig
	DryRun bool `long:"dry-run" description:"Compute and report replay effects without writing anything"`
}

func init() {
	EventRegisterCommands = append(EventRegisterCommands, AddCmdEventApply)
}

func AddCmdEventApply(cmd *flags.Command) error {
	_, err := cmd.AddCommand("apply", "Replay matched entries into the metadata store", `
Apply replays the metadata mutations of matched entries into the backing
store's directory-fragment tables, in journal order. It is the offline
equivalent of the file system's own journal replay, for use when the journal
is too damaged for the file system to start.

Replay is idempotent: each dentry mutation lands only if its version is ahead
of the stored one, so re-running apply after a partial failure is safe.
Entries which carry no metadata mutation are counted and skipped.

With --dry-run, apply computes and prints the replay's effects without
writing anything, which is the recommended first pass over an untrusted
journal.
`, &cmdEventApply{})
	return err
}

func (cmd *cmdEventApply) Execute([]string) error {
	startup()

	var filter, err = cmd.buildFilter()
	mbp.Must(err, "invalid filter argument")

	var ctx = context.Background()
	var j = openJournal()

	result, err := j.Recover(ctx, filter)
	mbp.Must(err, "failed to scan journal")

	var offsets = make([]uint64, 0, len(result.Events))
	for pos := range result.Events {
		offsets = append(offsets, pos)
	}
	sort.Slice(offsets, func(a, b int) bool { return offsets[a] < offsets[b] })

	var replayer = metastore.NewReplayer(j.Store)
	var report = metastore.Report{DryRun: cmd.DryRun}
	var skipped int

	for _, pos := range offsets {
		var entry = result.Events[pos].Entry
		if entry.Blob == nil {
			skipped++
			continue
		}
		var r, aerr = replayer.Apply(ctx, entry.Blob, cmd.DryRun)
		mbp.Must(aerr, "failed to replay entry", "offset", pos)
		report.Add(r)
	}

	log.WithFields(log.Fields{
		"entries": len(offsets),
		"skipped": skipped,
		"dryRun":  cmd.DryRun,
	}).Info("replay complete")

	var b, merr = json.MarshalIndent(report, "", "  ")
	mbp.Must(merr, "failed to encode replay report")
	os.Stdout.Write(append(b, '\n'))
	return nil
}
