// docbridge ingests regulatory documents from configured feeds and pages,
// tracks their changes as version history, and serves the results over HTTP.
package main

import "github.com/regdata/docbridge/cmd"

func main() {
	cmd.Execute()
}
