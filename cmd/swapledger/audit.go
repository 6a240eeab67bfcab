package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"swapledger/internal/model"
	"swapledger/internal/storage"
)

type auditSummary struct {
	Records int                     `json:"records"`
	Commits uint64                  `json:"commits"`
	Tip     string                  `json:"tip"`
	Kinds   map[model.EventKind]int `json:"kinds"`
}

// runAudit verifies the event log written by replay and prints a summary.
func runAudit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("events-out")
	if path == "" {
		return fmt.Errorf("events path is required")
	}
	records, tip, err := storage.ReadAuditLog(path)
	if err != nil {
		return err
	}

	out := auditSummary{
		Records: len(records),
		Commits: tip.Commit,
		Tip:     tip.Hash,
		Kinds:   make(map[model.EventKind]int),
	}
	for _, rec := range records {
		out.Kinds[rec.Event.Kind]++
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
