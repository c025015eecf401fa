package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/ui/theme"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent exam events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		userID, _ := cmd.Flags().GetInt64("user")
		action, _ := cmd.Flags().GetString("action")

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryExamEvents(context.Background(), userID, store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No exam events found.")
			return nil
		}

		fmt.Println(theme.Header.Render(fmt.Sprintf("%-6s  %-19s  %-14s  %-4s  %-4s  %-4s  %-20s  %s",
			"Seq", "Timestamp", "User", "Task", "Part", "Q", "Action", "Detail")))
		fmt.Println(theme.Separator(110))

		for _, e := range events {
			if action != "" && e.Action != action {
				continue
			}
			task, part, q := "-", "-", "-"
			if e.TaskID != 0 {
				task = strconv.Itoa(e.TaskID)
			}
			if e.TaskID != 0 && e.PartIndex >= 0 {
				part = strconv.Itoa(e.PartIndex + 1)
			}
			if e.QuestionIndex >= 0 {
				q = strconv.Itoa(e.QuestionIndex + 1)
			}
			fmt.Printf("%-6d  %-19s  %-14d  %-4s  %-4s  %-4s  %-20s  %s\n",
				e.Sequence,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.UserID,
				task, part, q,
				e.Action,
				truncate(e.Detail, 40),
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 50, "Number of events to show")
	historyCmd.Flags().Int64P("user", "u", 0, "Only show events of this user")
	historyCmd.Flags().StringP("action", "a", "", "Filter by action (e.g. answered, timed_out, evaluated)")
}
