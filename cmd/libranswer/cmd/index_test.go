package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/libranswer/libranswer/internal/index"
	"github.com/libranswer/libranswer/internal/watcher"
)

func TestAnyEventTargets_MatchesByBaseName(t *testing.T) {
	events := []watcher.FileEvent{
		{Path: "/refs/notes.txt"},
		{Path: "/refs/export.json"},
	}
	assert.True(t, anyEventTargets(events, "export.json"))
	assert.False(t, anyEventTargets(events, "other.json"))
}

func TestAnyEventTargets_EmptyEvents_ReturnsFalse(t *testing.T) {
	assert.False(t, anyEventTargets(nil, "export.json"))
}

func TestPrintIndexReport_IncludesCounts(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	report := &index.Report{
		Total: 10, Succeeded: 8, Skipped: 1, Errored: 1, Chunks: 42,
		Duration:    2500 * time.Millisecond,
		SkipReasons: []index.SkipReason{{ItemID: "item-1", Reason: "no PDF attached"}},
		ItemErrors:  []index.ItemError{{ItemID: "item-2", Message: "extraction failed"}},
	}
	printIndexReport(cmd, report)

	text := out.String()
	assert.Contains(t, text, "Indexed 8/10 items (42 chunks)")
	assert.Contains(t, text, "item-1: no PDF attached")
	assert.Contains(t, text, "item-2: extraction failed")
}

func TestPrintIndexReport_NoSkipsOrErrors_OmitsSections(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	report := &index.Report{Total: 3, Succeeded: 3, Chunks: 9, Duration: time.Second}
	printIndexReport(cmd, report)

	text := out.String()
	assert.NotContains(t, text, "Skipped")
	assert.NotContains(t, text, "Errors")
}
