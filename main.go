// Command doc-harvester crawls PowerShell documentation sites, building
// summarized documents and a deduplicated script library.
package main

import "github.com/psdocs/doc-harvester/cmd"

func main() {
	cmd.Execute()
}
