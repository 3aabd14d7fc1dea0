// Package report renders crawl summaries in multiple output formats.
//
// Three writers are provided: human-readable text for terminal use, JSON
// for tool integration, and GitHub-flavored Markdown for documentation.
// All writers consume the same Summary value, which aggregates the crawl
// counters with the resulting graph size.
package report
