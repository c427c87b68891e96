package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytput/ytput/internal/history"
)

var flagHistoryLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show past uploads",
		Long: `List recent uploads, newest first. With an ID argument, show the full
record of one upload.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "maximum entries to list")

	return cmd
}

func runHistory(_ *cobra.Command, args []string) error {
	logger := buildLogger()

	store, err := history.Open(resolvedCfg.HistoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid history id %q", args[0])
		}

		return showHistoryEntry(store, id)
	}

	return listHistory(store)
}

func listHistory(store *history.Store) error {
	entries, err := store.Recent(flagHistoryLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printHistoryJSON(entries)
	}

	if len(entries) == 0 {
		statusf("No uploads recorded yet.\n")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			formatTime(e.StartedAt.Local()),
			e.Status,
			formatSize(e.Size),
			e.VideoID,
			e.Title,
		})
	}

	printTable(os.Stdout, []string{"ID", "WHEN", "STATUS", "SIZE", "VIDEO", "TITLE"}, rows)

	return nil
}

func showHistoryEntry(store *history.Store, id int64) error {
	e, err := store.Get(id)
	if err != nil {
		return err
	}

	if flagJSON {
		return printHistoryJSON([]history.Entry{*e})
	}

	fmt.Printf("ID:       %d\n", e.ID)
	fmt.Printf("Title:    %s\n", e.Title)
	fmt.Printf("File:     %s\n", e.Path)
	fmt.Printf("Privacy:  %s\n", e.Privacy)
	fmt.Printf("Status:   %s\n", e.Status)
	fmt.Printf("Size:     %s\n", formatSize(e.Size))
	fmt.Printf("Started:  %s\n", e.StartedAt.Local().Format(time.RFC1123))

	if !e.FinishedAt.IsZero() {
		fmt.Printf("Finished: %s\n", e.FinishedAt.Local().Format(time.RFC1123))
	}

	if e.VideoID != "" {
		fmt.Printf("Watch:    https://www.youtube.com/watch?v=%s\n", e.VideoID)
	}

	if e.Error != "" {
		fmt.Printf("Error:    %s\n", e.Error)
	}

	return nil
}

// historyOutput is the JSON schema for `history --json`.
type historyOutput struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	Privacy    string `json:"privacy"`
	Size       int64  `json:"size"`
	Uploaded   int64  `json:"uploaded"`
	Status     string `json:"status"`
	VideoID    string `json:"video_id,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func printHistoryJSON(entries []history.Entry) error {
	out := make([]historyOutput, 0, len(entries))

	for _, e := range entries {
		h := historyOutput{
			ID:        e.ID,
			Path:      e.Path,
			Title:     e.Title,
			Privacy:   e.Privacy,
			Size:      e.Size,
			Uploaded:  e.Uploaded,
			Status:    e.Status,
			VideoID:   e.VideoID,
			Error:     e.Error,
			StartedAt: e.StartedAt.Format(time.RFC3339),
		}

		if !e.FinishedAt.IsZero() {
			h.FinishedAt = e.FinishedAt.Format(time.RFC3339)
		}

		out = append(out, h)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
