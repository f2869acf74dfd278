// Package main provides the entry point for the webcrawler CLI.
//
// webcrawler downloads every page reachable from one or more seed addresses
// within a link depth, with bounded concurrency overall and per host, and
// keeps a history of runs so changes between crawls can be reviewed.
//
// Usage:
//
//	webcrawler crawl <seed>...
//	webcrawler history <seed>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
