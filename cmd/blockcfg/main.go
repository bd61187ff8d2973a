// Command blockcfg applies declarative block type configuration to a SQLite
// database.
//
// Usage:
//
//	blockcfg apply project.yaml
//	blockcfg watch project.yaml
//	blockcfg list content
//	blockcfg tree content --owner 42
//	blockcfg icon hero.png --width 64 --height 64
//	blockcfg test ./testdata/scenarios
package main

import (
	"os"

	"github.com/roach88/blockcfg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
