package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/abhisek/speakbot/internal/exam"
	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/ui/theme"
	"github.com/spf13/cobra"
)

var grantCmd = &cobra.Command{
	Use:   "grant <user-id>",
	Short: "Grant (or with --revoke, remove) access to the restricted tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		revoke, _ := cmd.Flags().GetBool("revoke")

		userID, err := exam.ParseUserID(args[0])
		if err != nil {
			return err
		}

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ProfileRepo().SetAccess(context.Background(), userID, !revoke); err != nil {
			return fmt.Errorf("set access: %w", err)
		}

		if revoke {
			fmt.Printf("Access revoked for user %d\n", userID)
		} else {
			fmt.Printf("Access granted for user %d\n", userID)
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List known users and their access",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		profiles, err := s.ProfileRepo().List(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(profiles) == 0 {
			fmt.Println("No users yet.")
			return nil
		}

		fmt.Println(theme.Header.Render(fmt.Sprintf("%-14s  %-28s  %-16s  %s",
			"User", "Name", "Joined", "Access")))
		fmt.Println(theme.Separator(70))
		for _, p := range profiles {
			name := p.DisplayName
			if name == "" {
				name = "-"
			}
			access := p.HasAccess || (cfg.Exam.AdminID != 0 && p.UserID == cfg.Exam.AdminID)
			fmt.Printf("%-14d  %-28s  %-16s  %s\n",
				p.UserID, truncate(name, 28),
				p.CreatedAt.Local().Format("2006-01-02 15:04"), theme.Mark(access))
		}
		fmt.Printf("\n%d users\n", len(profiles))
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show one user's access and stored evaluation reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := exam.ParseUserID(args[0])
		if err != nil {
			return err
		}

		s, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.ProfileRepo().Get(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		if p == nil {
			return fmt.Errorf("user %d not found", userID)
		}

		catalog, err := script.Load(cfg.Script)
		if err != nil {
			return fmt.Errorf("load script: %w", err)
		}

		fmt.Println(theme.Title.Render(fmt.Sprintf("User %d", p.UserID)))
		fmt.Printf("Name:      %s\n", p.DisplayName)
		fmt.Printf("Access:    %s\n", theme.Mark(p.HasAccess))
		fmt.Printf("Joined:    %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))

		if len(p.Scores) == 0 {
			fmt.Println()
			fmt.Println(theme.Hint.Render("No evaluations recorded."))
			return nil
		}

		for _, key := range sortedScoreKeys(p.Scores) {
			score := p.Scores[key]
			fmt.Println()
			fmt.Println(theme.Header.Render(scoreTitle(catalog, key)) + "  " +
				theme.Hint.Render(score.RecordedAt.Local().Format("2006-01-02 15:04")))
			fmt.Println(theme.Separator(60))
			fmt.Println(score.Report)
		}
		return nil
	},
}

func sortedScoreKeys(scores map[store.ScoreKey]store.Score) []store.ScoreKey {
	keys := make([]store.ScoreKey, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TaskID != keys[j].TaskID {
			return keys[i].TaskID < keys[j].TaskID
		}
		return keys[i].PartIndex < keys[j].PartIndex
	})
	return keys
}

func scoreTitle(c *script.Catalog, key store.ScoreKey) string {
	task, ok := c.Task(key.TaskID)
	if !ok {
		return fmt.Sprintf("Task %d, part %d", key.TaskID, key.PartIndex+1)
	}
	title := task.Title
	if part, ok := c.Part(key.TaskID, key.PartIndex); ok && len(task.Parts) > 1 {
		title += " / " + part.Name
	}
	return title
}

func init() {
	grantCmd.Flags().Bool("revoke", false, "Remove access instead of granting it")
	usersCmd.Flags().IntP("limit", "n", 0, "Number of users to show (0 = all)")
}
