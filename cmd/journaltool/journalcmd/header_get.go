package journalcmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jessevdk/go-flags"

	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdHeaderGet struct{}

func init() {
	HeaderRegisterCommands = append(HeaderRegisterCommands, AddCmdHeaderGet)
}

func AddCmdHeaderGet(cmd *flags.Command) error {
	_, err := cmd.AddCommand("get", "Print the journal header", `
Get fetches and prints the journal header as JSON. A missing or undecodable
header is an error; use 'journal inspect' to diagnose and recover one.
`, &cmdHeaderGet{})
	return err
}

func (cmd *cmdHeaderGet) Execute([]string) error {
	startup()

	var ctx = context.Background()
	var j = openJournal()

	var scanner = j.NewScanner(nil)
	mbp.Must(scanner.ScanHeader(ctx), "failed to read journal header")

	var result = scanner.Result()
	if !result.HeaderPresent {
		mbp.Must(os.ErrNotExist, "journal header object not found")
	} else if !result.HeaderValid {
		mbp.Must(os.ErrInvalid, "journal header is undecodable")
	}

	var b, err = json.MarshalIndent(result.Header, "", "  ")
	mbp.Must(err, "failed to encode header")
	os.Stdout.Write(append(b, '\n'))
	return nil
}
