// Command routecore is the entry point for the routing optimization CLI.
package main

import "routecore/cmd"

func main() {
	cmd.Execute()
}
