// The main package for the ingestor executable.
package main

import (
	"github.com/JakeFAU/catalog-ingestor/cmd"
)

func main() {
	cmd.Execute()
}
