// Command holocron crawls a SWAPI-style JSON API into a resumable frontier
// and exports the scraped records for batch ingestion.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
