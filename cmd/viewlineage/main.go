// Command viewlineage reports column-level lineage for SQL view definitions.
package main

import (
	"os"

	"github.com/leapstack-labs/leapsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
