package journalcmd

import (
	"github.com/jessevdk/go-flags"

	"github.com/sennajox/journaltool/journal"
	mbp "github.com/sennajox/journaltool/mainboilerplate"
	"github.com/sennajox/journaltool/stores"

	// Register object store backends.
	_ "github.com/sennajox/journaltool/stores/fs"
	_ "github.com/sennajox/journaltool/stores/gcs"
	_ "github.com/sennajox/journaltool/stores/s3"
)

const iniFilename = "journaltool.ini"

var (
	baseCfg = new(struct {
		Store string        `long:"store" env:"STORE" default:"file:///var/lib/journaltool" description:"Object store URL holding the journal (file://, s3://, gs://)"`
		Rank  int           `long:"rank" env:"RANK" default:"0" description:"Rank of the journal to operate on"`
		Log   mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
	})

	JournalRegisterCommands []RegisterCommandFunc
	HeaderRegisterCommands  []RegisterCommandFunc
	EventRegisterCommands   []RegisterCommandFunc
)

// Functions used to register sub-commands with a parent.
type RegisterCommandFunc func(*flags.Command) error

// FilterConfig is common configuration of entry-matching operations.
type FilterConfig struct {
	Range  string `long:"range" description:"Offset range to match, as start..end (either side may be omitted)"`
	Path   string `long:"path" description:"Substring to match against dentry paths"`
	Inode  string `long:"inode" description:"Inode to match, as a lump directory or dentry target"`
	Type   string `long:"type" description:"Entry type to match"`
	Frag   string `long:"frag" description:"Directory fragment to match, as ino[.frag][/dentry]"`
	Client string `long:"client" description:"Client identity to match"`
}

// buildFilter assembles the configured predicates into a Filter.
func (cfg FilterConfig) buildFilter() (*journal.Filter, error) {
	var args []string
	for _, t := range []struct{ flag, value string }{
		{"--range", cfg.Range},
		{"--path", cfg.Path},
		{"--inode", cfg.Inode},
		{"--type", cfg.Type},
		{"--frag", cfg.Frag},
		{"--client", cfg.Client},
	} {
		if t.value != "" {
			args = append(args, t.flag, t.value)
		}
	}
	var filter = new(journal.Filter)
	if err := filter.ParseArgs(args); err != nil {
		return nil, err
	}
	return filter, nil
}

func startup() {
	mbp.InitLog(baseCfg.Log)
}

// openJournal dials the configured store and binds the configured rank.
func openJournal() journal.Journal {
	var store, err = stores.Open(baseCfg.Store)
	mbp.Must(err, "failed to open object store", "store", baseCfg.Store)
	return journal.Journal{Store: store, Rank: baseCfg.Rank}
}

func mustAddCmd(cmd *flags.Command, name, short, long string, cfg interface{}) *flags.Command {
	cmd, err := cmd.AddCommand(name, short, long, cfg)
	mbp.Must(err, "failed to add command")
	return cmd
}

func Execute() {
	parser := flags.NewParser(baseCfg, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename)
	parser.LongDescription = `journaltool examines and repairs the metadata journal of a file system rank.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure journaltool with a '` + iniFilename + `' file in the current working
	directory, or with '~/.config/journaltool/` + iniFilename + `'. Use the 'print-config'
	sub-command to inspect the tool's current configuration.
	`

	// Subcommands that exist solely to contain and organize further nested
	// subcommands. They must be initialized here so they exist prior to any
	// init() functions being called to add nested subcommands.
	cmdJournal := mustAddCmd(parser.Command, "journal", "Inspect, export, import, or reset the journal", "", &struct{}{})
	for _, addSubCommand := range JournalRegisterCommands {
		mbp.Must(addSubCommand(cmdJournal), "could not add journal subcommand")
	}

	cmdHeader := mustAddCmd(parser.Command, "header", "Read or modify the journal header", "", &struct{}{})
	for _, addSubCommand := range HeaderRegisterCommands {
		mbp.Must(addSubCommand(cmdHeader), "could not add header subcommand")
	}

	cmdEvent := mustAddCmd(parser.Command, "event", "Select, erase, or replay journal entries", "", &struct{}{})
	for _, addSubCommand := range EventRegisterCommands {
		mbp.Must(addSubCommand(cmdEvent), "could not add event subcommand")
	}

	mbp.MustParseConfig(parser, iniFilename)
}
