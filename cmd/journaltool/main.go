package main

import (
	"github.com/sennajox/journaltool/cmd/journaltool/journalcmd"
)

func main() {
	journalcmd.Execute()
}
