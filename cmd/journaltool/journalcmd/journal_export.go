package journalcmd

import (
	"context"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdJournalExport struct {
	Path string `long:"path" required:"true" description:"File to write the journal dump to. A .gz suffix selects gzip compression"`
}

func init() {
	JournalRegisterCommands = append(JournalRegisterCommands, AddCmdJournalExport)
}

func AddCmdJournalExport(cmd *flags.Command) error {
	_, err := cmd.AddCommand("export", "Dump the journal's entries to a file", `
Export salvages every decodable entry of the journal into a flat dump file,
preserving each entry's original journal offset so that a later import
reconstructs the journal byte-for-byte.

Export is the first step of the recommended disaster-recovery procedure: take
a dump of whatever remains readable before any repair which rewrites journal
objects, so the original state can be restored if the repair makes matters
worse. Damaged regions are skipped with a warning and do not fail the export.
`, &cmdJournalExport{})
	return err
}

func (cmd *cmdJournalExport) Execute([]string) error {
	startup()

	var j = openJournal()
	var err = j.Export(context.Background(), afero.NewOsFs(), cmd.Path)
	mbp.Must(err, "failed to export journal", "path", cmd.Path)
	return nil
}
