package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// testSummary returns a summary with distinctive values for assertions.
func testSummary() *Summary {
	return &Summary{
		StartedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:          95*time.Second + 300*time.Millisecond,
		Seeds:             2,
		PagesCrawled:      41,
		PagesFailed:       3,
		Retries:           7,
		URLDuplicates:     12,
		ContentDuplicates: 5,
		DepthLimited:      9,
		FrontierEvicted:   1,
		FrontierDropped:   0,
		Nodes:             48,
		Edges:             113,
		Hosts:             6,
		EdgesQueued:       2,
		PendingReplay:     2,
		CircuitsBuilt:     4,
		CircuitsRotated:   1,
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSimpleWriter(&buf)

	n, err := w.Write(testSummary())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != buf.Len() {
		t.Errorf("Write() returned %d, buffer holds %d bytes", n, buf.Len())
	}

	output := buf.String()
	for _, want := range []string{
		"=== Crawl Summary ===",
		"Duration: 1m35s",
		"Seeds:    2",
		"crawled:            41",
		"failed:             3",
		"nodes: 48",
		"edges: 113",
		"hosts: 6",
		"run 'onionmap replay'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	// Scheduling details need verbose.
	if strings.Contains(output, "Scheduling") {
		t.Error("non-verbose output contains scheduling section")
	}
}

func TestSimpleWriterVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSimpleWriter(&buf, WithVerbose(true))

	if _, err := w.Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Scheduling",
		"retries:          7",
		"depth limited:    9",
		"circuits built:   4",
		"circuits rotated: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("verbose output missing %q:\n%s", want, output)
		}
	}
}

func TestSimpleWriterHidesEmptyReplayQueue(t *testing.T) {
	t.Parallel()

	summary := testSummary()
	summary.PendingReplay = 0

	var buf bytes.Buffer
	if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if strings.Contains(buf.String(), "replay") {
		t.Errorf("output mentions replay with an empty queue:\n%s", buf.String())
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf)

	if _, err := w.Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.PagesCrawled != 41 {
		t.Errorf("decoded PagesCrawled = %d, want 41", decoded.PagesCrawled)
	}
	if decoded.Edges != 113 {
		t.Errorf("decoded Edges = %d, want 113", decoded.Edges)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("JSON output missing trailing newline")
	}
}

func TestJSONWriterPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf, WithPrettyPrint())

	if _, err := w.Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "\n  \"") {
		t.Errorf("pretty output is not indented:\n%s", output)
	}

	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("pretty output is not valid JSON: %v", err)
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	if _, err := w.Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"# Crawl Summary",
		"## Pages",
		"## Graph",
		"## Circuits",
		"| Nodes",
		"48",
		"onionmap replay",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("markdown output missing %q:\n%s", want, output)
		}
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(
		NewSimpleWriter(&text),
		NewJSONWriter(&js),
	)

	total, err := mw.Write(testSummary())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if total != text.Len()+js.Len() {
		t.Errorf("total = %d, want %d", total, text.Len()+js.Len())
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("one of the writers produced no output")
	}
}

// failingWriter always errors, for MultiWriter error propagation.
type failingWriter struct{}

func (failingWriter) Write(*Summary) (int, error) {
	return 0, errors.New("write failed")
}

func TestMultiWriterStopsOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf))

	if _, err := mw.Write(testSummary()); err == nil {
		t.Fatal("Write() error = nil, want propagated error")
	}
	if buf.Len() != 0 {
		t.Error("later writer ran after an earlier failure")
	}
}
