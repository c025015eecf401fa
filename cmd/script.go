package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/ui/theme"
	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Inspect and validate exam scripts",
}

var scriptShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the tasks, parts and questions of a script (default: built-in)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		c, err := script.Load(path)
		if err != nil {
			return err
		}

		for _, t := range c.Tasks() {
			title := fmt.Sprintf("Task %d: %s", t.ID, t.Title)
			if t.Restricted {
				title += " (restricted)"
			}
			fmt.Println(theme.Title.Render(title))
			for pi, p := range t.Parts {
				fmt.Printf("  %s  %s\n", theme.Header.Render(fmt.Sprintf("Part %d: %s", pi+1, p.Name)),
					theme.Hint.Render(fmt.Sprintf("prep %ds, answer %ds, %s per question",
						p.PrepSeconds, p.AnswerSeconds, p.QuestionWindow())))
				if p.IsDiscussion() {
					fmt.Printf("    Topic: %s\n", p.Topic)
				}
				for qi, q := range p.Questions {
					fmt.Printf("    %d. %s\n", qi+1, q)
				}
			}
			fmt.Println()
		}
		fmt.Printf("%d tasks, %d questions, %d open\n", len(c.Tasks()), len(c.Entries()), c.OpenTasks())
		return nil
	},
}

var scriptValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a script file against the script schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := script.Load(args[0])
		var ve *script.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems {
				fmt.Fprintln(os.Stderr, theme.Denied.Render("✗ ")+p)
			}
			return fmt.Errorf("%s: %d problems", args[0], len(ve.Problems))
		}
		if err != nil {
			return err
		}
		fmt.Println(theme.Granted.Render("✓ ") + args[0] + " is valid")
		return nil
	},
}

var scriptDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the built-in script as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := os.Stdout.Write(script.DefaultBytes())
		return err
	},
}

func init() {
	scriptCmd.AddCommand(scriptShowCmd)
	scriptCmd.AddCommand(scriptValidateCmd)
	scriptCmd.AddCommand(scriptDefaultCmd)
}
