// Command herald runs the Uthgard Herald alerting pipeline: the scheduled
// warmap tick, the tracked-player scan, and the admin API server.
package main

import "github.com/Golani45/uthgard/cmd/herald/cmd"

func main() {
	cmd.Execute()
}
