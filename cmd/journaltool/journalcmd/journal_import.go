package journalcmd

import (
	"context"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdJournalImport struct {
	Path string `long:"path" required:"true" description:"Journal dump file to import. A .gz suffix selects gzip decompression"`
}

func init() {
	JournalRegisterCommands = append(JournalRegisterCommands, AddCmdJournalImport)
}

func AddCmdJournalImport(cmd *flags.Command) error {
	_, err := cmd.AddCommand("import", "Replace the journal's contents from a dump file", `
Import replaces the journal with the contents of a dump previously taken by
'journal export'. Prior data objects are removed, the dump's header is
written, and each entry's raw bytes are restored at their original offsets.

Import is destructive: whatever the journal held beforehand is discarded.
Unlike export, any fault during import is fatal, since a partially imported
journal is not usable.
`, &cmdJournalImport{})
	return err
}

func (cmd *cmdJournalImport) Execute([]string) error {
	startup()

	var j = openJournal()
	var err = j.Import(context.Background(), afero.NewOsFs(), cmd.Path)
	mbp.Must(err, "failed to import journal", "path", cmd.Path)
	return nil
}
