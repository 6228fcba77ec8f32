// Command fieldsurvey caches Salesforce survey metadata and records locally
// and synchronizes edited surveys back.
package main

import "github.com/mesh-intelligence/fieldsurvey/internal/cli"

func main() {
	cli.Execute()
}
