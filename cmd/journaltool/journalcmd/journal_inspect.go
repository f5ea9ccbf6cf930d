package journalcmd

import (
	"context"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/sennajox/journaltool/journal"
	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdJournalInspect struct {
	Format string `long:"format" short:"o" choice:"table" choice:"json" default:"table" description:"Output format"`
}

func init() {
	JournalRegisterCommands = append(JournalRegisterCommands, AddCmdJournalInspect)
}

func AddCmdJournalInspect(cmd *flags.Command) error {
	_, err := cmd.AddCommand("inspect", "Report the journal's health", `
Inspect walks the journal end to end and reports on its overall health: the
state of its header, which data objects are present, byte ranges in which no
valid entry could be located, and counts of decodable entries.

Inspect tolerates arbitrary damage. A missing or undecodable header is
replaced with one synthesized from the data objects which exist, and the walk
then resumes under it. Damaged regions are skipped by searching forward for
the next well-formed entry, and are reported rather than fatal.
`, &cmdJournalInspect{})
	return err
}

func (cmd *cmdJournalInspect) Execute([]string) error {
	startup()

	var ctx = context.Background()
	var j = openJournal()

	var result, err = j.Recover(ctx, nil)
	mbp.Must(err, "failed to inspect journal")

	var out = journal.Outputter{Journal: j, Scan: result}
	if cmd.Format == "json" {
		return out.JSON(os.Stdout)
	}
	out.Summary(os.Stdout)
	return nil
}
