// Command mcpaudit is a transparent stdio proxy and cognitive observability
// agent for MCP (Model Context Protocol) traffic.
package main

import "github.com/cogtrace/mcpaudit/cmd/mcpaudit/cmd"

func main() {
	cmd.Execute()
}
