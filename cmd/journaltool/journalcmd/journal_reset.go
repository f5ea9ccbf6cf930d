package journalcmd

import (
	"context"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdJournalReset struct{}

func init() {
	JournalRegisterCommands = append(JournalRegisterCommands, AddCmdJournalReset)
}

func AddCmdJournalReset(cmd *flags.Command) error {
	_, err := cmd.AddCommand("reset", "Discard the journal's contents (disaster recovery)", `
Reset removes every data object of the journal and writes a fresh, empty
header in their place.

When the prior header was valid, the new journal begins at the old write
offset rounded up to a stride boundary, so entry offsets are never reused.
When the prior header was unusable, the journal restarts at offset zero.

Reset discards all journaled metadata mutations which were not yet folded
into the backing store. Run 'event apply' (or at minimum 'journal export')
first: a reset without replay silently loses those mutations.
`, &cmdJournalReset{})
	return err
}

func (cmd *cmdJournalReset) Execute([]string) error {
	startup()

	var ctx = context.Background()
	var j = openJournal()

	var scanner = j.NewScanner(nil)
	mbp.Must(scanner.Scan(ctx), "failed to scan journal")

	var prior = scanner.Result()
	if !prior.IsHealthy() {
		log.WithFields(log.Fields{
			"objectsMissing": len(prior.ObjectsMissing),
			"rangesInvalid":  len(prior.RangesInvalid),
		}).Warn("journal is unhealthy; entries in damaged regions are lost by reset")
	}

	mbp.Must(j.Reset(ctx, prior), "failed to reset journal")
	return nil
}
