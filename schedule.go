package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytput/ytput/internal/tube"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Show pending scheduled videos and the next free slot",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := apiClient(ctx)
	if err != nil {
		return err
	}

	scheduled, err := client.ScheduledVideos(ctx)
	if err != nil {
		return err
	}

	fallback := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	next := tube.NextSlot(scheduled, fallback)

	if flagJSON {
		return printScheduleJSON(scheduled, next)
	}

	if len(scheduled) == 0 {
		statusf("No scheduled videos.\n")
	} else {
		rows := make([][]string, 0, len(scheduled))
		for _, v := range scheduled {
			rows = append(rows, []string{
				v.PublishAt.Local().Format("Mon Jan 2 15:04"),
				v.ID,
				v.Title,
			})
		}

		printTable(os.Stdout, []string{"PUBLISH", "VIDEO", "TITLE"}, rows)
	}

	fmt.Printf("\nNext slot: %s\n", next.Local().Format("Mon Jan 2 15:04"))

	return nil
}

// scheduleOutput is the JSON schema for `schedule --json`.
type scheduleOutput struct {
	Scheduled []scheduledVideoOutput `json:"scheduled"`
	NextSlot  string                 `json:"next_slot"`
}

type scheduledVideoOutput struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	PublishAt string `json:"publish_at"`
}

func printScheduleJSON(scheduled []tube.ScheduledVideo, next time.Time) error {
	out := scheduleOutput{
		Scheduled: make([]scheduledVideoOutput, 0, len(scheduled)),
		NextSlot:  next.UTC().Format(time.RFC3339),
	}

	for _, v := range scheduled {
		out.Scheduled = append(out.Scheduled, scheduledVideoOutput{
			VideoID:   v.ID,
			Title:     v.Title,
			PublishAt: v.PublishAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
