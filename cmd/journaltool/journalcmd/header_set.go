package journalcmd

import (
	"context"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/sennajox/journaltool/journal"
	mbp "github.com/sennajox/journaltool/mainboilerplate"
)

type cmdHeaderSet struct {
	Args struct {
		Field string `positional-arg-name:"FIELD" description:"Header field to set (trim, expire, or write)"`
		Value uint64 `positional-arg-name:"VALUE" description:"New offset value"`
	} `positional-args:"true" required:"true"`
}

func init() {
	HeaderRegisterCommands = append(HeaderRegisterCommands, AddCmdHeaderSet)
}

func AddCmdHeaderSet(cmd *flags.Command) error {
	_, err := cmd.AddCommand("set", "Overwrite one journal header field", `
Set overwrites the trim, expire, or write offset of the journal header. The
stored header must already be valid, and the updated header must still
satisfy trim <= expire <= write.

Set is a surgical tool for operators who know precisely what they are doing,
typically to step the trim offset past a damaged region which 'event splice'
has already erased. It performs no validation of the offsets against the
journal's actual contents.
`, &cmdHeaderSet{})
	return err
}

func (cmd *cmdHeaderSet) Execute([]string) error {
	startup()

	var ctx = context.Background()
	var j = openJournal()

	var scanner = j.NewScanner(nil)
	mbp.Must(scanner.ScanHeader(ctx), "failed to read journal header")

	var result = scanner.Result()
	if !result.HeaderValid {
		mbp.Must(journal.ErrDecode, "stored journal header is unusable; run 'journal inspect' to recover it")
	}
	var h = *result.Header

	switch cmd.Args.Field {
	case "trim":
		h.Trim = cmd.Args.Value
	case "expire":
		h.Expire = cmd.Args.Value
	case "write":
		h.Write = cmd.Args.Value
	default:
		mbp.Must(journal.ErrInvalidArgument, "unknown header field", "field", cmd.Args.Field)
	}
	mbp.Must(h.Validate(), "updated header is invalid")

	mbp.Must(j.Store.Write(ctx, journal.HeaderObject(j.Rank), 0, h.Encode()),
		"failed to write journal header")

	log.WithFields(log.Fields{
		"field": cmd.Args.Field,
		"value": cmd.Args.Value,
	}).Info("journal header updated")
	return nil
}
