package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// summaryDurationPrecision rounds the displayed duration; sub-second
// precision is noise for a multi-minute crawl.
const summaryDurationPrecision = time.Second

// SimpleWriter outputs a human-readable text summary.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the scheduling counters in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with scheduling details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("=== Crawl Summary ===\n")
	fmt.Fprintf(&sb, "Started:  %s\n", summary.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Duration: %s\n", summary.Duration.Round(summaryDurationPrecision))
	fmt.Fprintf(&sb, "Seeds:    %d\n", summary.Seeds)
	sb.WriteString("\n")

	sb.WriteString("Pages\n")
	fmt.Fprintf(&sb, "  crawled:            %d\n", summary.PagesCrawled)
	fmt.Fprintf(&sb, "  failed:             %d\n", summary.PagesFailed)
	fmt.Fprintf(&sb, "  duplicate content:  %d\n", summary.ContentDuplicates)
	sb.WriteString("\n")

	sb.WriteString("Graph\n")
	fmt.Fprintf(&sb, "  nodes: %d\n", summary.Nodes)
	fmt.Fprintf(&sb, "  edges: %d\n", summary.Edges)
	fmt.Fprintf(&sb, "  hosts: %d\n", summary.Hosts)
	if summary.PendingReplay > 0 {
		fmt.Fprintf(&sb, "  edges awaiting replay: %d (run 'onionmap replay')\n", summary.PendingReplay)
	}

	if w.verbose {
		sb.WriteString("\nScheduling\n")
		fmt.Fprintf(&sb, "  retries:          %d\n", summary.Retries)
		fmt.Fprintf(&sb, "  known URLs:       %d\n", summary.URLDuplicates)
		fmt.Fprintf(&sb, "  depth limited:    %d\n", summary.DepthLimited)
		fmt.Fprintf(&sb, "  frontier evicted: %d\n", summary.FrontierEvicted)
		fmt.Fprintf(&sb, "  frontier dropped: %d\n", summary.FrontierDropped)
		fmt.Fprintf(&sb, "  circuits built:   %d\n", summary.CircuitsBuilt)
		fmt.Fprintf(&sb, "  circuits rotated: %d\n", summary.CircuitsRotated)
	}

	return fmt.Fprint(w.output, sb.String())
}
