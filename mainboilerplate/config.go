package mainboilerplate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// MustParseConfig parses the combination of an optional INI file, environment
// bindings, and explicit flags into the Parser's configuration. An INI file
// named |configName| is looked for in the working directory, then under
// ~/.config/journaltool; the first match wins.
func MustParseConfig(parser *flags.Parser, configName string) {
	// Tolerate unknown options while reading the INI file, as it may
	// configure commands other than the one being invoked.
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown

	var iniParser = flags.NewIniParser(parser)
	for _, prefix := range []string{".", filepath.Join(os.Getenv("HOME"), ".config", "journaltool")} {
		var err = iniParser.ParseFile(filepath.Join(prefix, configName))
		if err == nil {
			break
		} else if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	parser.Options = origOptions
	MustParseArgs(parser)
}

// MustParseArgs requires that the Parser parse os.Args without error.
func MustParseArgs(parser *flags.Parser) {
	var _, err = parser.ParseArgs(os.Args[1:])
	if err == nil {
		return
	}
	flagErr, ok := err.(*flags.Error)
	if !ok {
		Must(err, "fatal error")
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// The configuration struct itself is malformed: a developer error,
		// not an input error.
		panic(err)

	case flags.ErrCommandRequired, flags.ErrHelp:
		// Follow go-flags output with full usage and the build version.
		if flagErr.Type == flags.ErrCommandRequired || parser.Options&flags.PrintErrors == 0 {
			os.Stderr.WriteString("\n")
			parser.WriteHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "\nVersion %s, built at %s.\n", Version, BuildDate)
		os.Exit(1)

	default:
		// An input error. go-flags has already printed its diagnosis.
		os.Exit(1)
	}
}

// AddPrintConfigCmd registers a "print-config" command which writes the
// fully-resolved runtime configuration to stdout in INI format, so users can
// check how their file, environment, and flags combined.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes it to stdout in INI format.
`, &printConfig{parser})
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
}

func (p printConfig) Execute([]string) error {
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(os.Stdout, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}
