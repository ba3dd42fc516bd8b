// Command explorer serves and browses the motor, module and RA compatibility
// catalogs.
package main

import "catalogexplorer/internal/cli"

func main() {
	cli.Execute()
}
