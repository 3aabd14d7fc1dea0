package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs the summary in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05")},
			{"Duration", summary.Duration.Round(summaryDurationPrecision).String()},
			{"Seeds", strconv.Itoa(summary.Seeds)},
		},
	})

	md.H2("Pages")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Crawled", strconv.Itoa(summary.PagesCrawled)},
			{"Failed", strconv.Itoa(summary.PagesFailed)},
			{"Duplicate content", strconv.Itoa(summary.ContentDuplicates)},
			{"Retries", strconv.Itoa(summary.Retries)},
		},
	})

	md.H2("Graph")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Nodes", strconv.Itoa(summary.Nodes)},
			{"Edges", strconv.Itoa(summary.Edges)},
			{"Hosts", strconv.Itoa(summary.Hosts)},
			{"Edges awaiting replay", strconv.Itoa(summary.PendingReplay)},
		},
	})

	if summary.PendingReplay > 0 {
		md.Warning("Some edges could not be written during the crawl. Run `onionmap replay` to flush the replay queue.")
	}

	md.H2("Circuits")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Built", strconv.Itoa(summary.CircuitsBuilt)},
			{"Rotated", strconv.Itoa(summary.CircuitsRotated)},
		},
	})

	return len(md.String()), md.Build()
}
