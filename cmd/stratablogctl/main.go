// Command stratablogctl runs maintenance tasks against a stratablog database.
package main

import "github.com/dalemusser/stratablog/internal/app/ctl"

func main() {
	ctl.Execute()
}
