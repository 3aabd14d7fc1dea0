// Package main provides the entry point for the onionmap CLI.
//
// onionmap maps the link structure of Tor hidden services (.onion
// addresses). Starting from seed URLs, it crawls through isolated Tor
// circuits and records pages and the links between them as a graph.
//
// Usage:
//
//	onionmap crawl http://exampleonion.onion/
//	onionmap crawl --seeds seeds.txt
//
// See --help for all available options.
package main

// main is the entry point for onionmap.
func main() {
	Execute()
}
