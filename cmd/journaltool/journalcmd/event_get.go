package journalcmd

import (
	"context"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/sennajox/journaltool/journal"
	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdEventGet struct {
	FilterConfig
	Format string `long:"format" short:"o" choice:"list" choice:"json" choice:"binary" default:"list" description:"Output format"`
}

func init() {
	EventRegisterCommands = append(EventRegisterCommands, AddCmdEventGet)
}

func AddCmdEventGet(cmd *flags.Command) error {
	_, err := cmd.AddCommand("get", "Select and print journal entries", `
Get scans the journal and prints the entries matching the configured filter
predicates, which combine as a conjunction. With no predicates, every
decodable entry matches.

The 'list' format prints one line per entry; 'json' prints the full scan
result including health findings; 'binary' re-emits the raw journal bytes of
matched entries, suitable for piping to external tooling.

Examples:

  # All entries touching a path, anywhere in the journal:
  journaltool event get --path /home/alice

  # Update entries of one client within an offset range:
  journaltool event get --type update --client client.4121 --range 0x1000..0x9000
`, &cmdEventGet{})
	return err
}

func (cmd *cmdEventGet) Execute([]string) error {
	startup()

	var filter, err = cmd.buildFilter()
	mbp.Must(err, "invalid filter argument")

	var ctx = context.Background()
	var j = openJournal()

	result, err := j.Recover(ctx, filter)
	mbp.Must(err, "failed to scan journal")

	var out = journal.Outputter{Journal: j, Scan: result}
	switch cmd.Format {
	case "json":
		return out.JSON(os.Stdout)
	case "binary":
		return out.Binary(ctx, os.Stdout)
	default:
		out.List(os.Stdout)
	}
	return nil
}
