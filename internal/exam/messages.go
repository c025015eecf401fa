package exam

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/transport"
)

const (
	timesUpText       = "Time's up! Moving to next question."
	nothingToEvalText = "No responses to evaluate."
	evaluatingText    = "Evaluating your responses..."
	placeholderAnswer = "[Transcription failed]"
)

func backButton() []transport.Button {
	return []transport.Button{{Text: "Back to Tasks", Action: ActionBackToTasks}}
}

func welcomeMessage(userID int64, name, webAppURL string) transport.Message {
	if name == "" {
		name = "User"
	}
	msg := transport.Message{
		UserID: userID,
		Text:   fmt.Sprintf("Salom, %s!\n\nThis bot helps you practice and assess your speaking skills.", name),
	}
	if webAppURL != "" {
		msg.Buttons = [][]transport.Button{{{Text: "Open Web App", URL: webAppURL}}}
	}
	return msg
}

func taskMenu(userID int64, tasks []*script.Task, admin bool) transport.Message {
	rows := make([][]transport.Button, 0, len(tasks)+2)
	for _, t := range tasks {
		label := t.Title
		if t.Restricted {
			label += " 🔒"
		}
		rows = append(rows, []transport.Button{{Text: label, Action: TaskAction(t.ID)}})
	}
	rows = append(rows, []transport.Button{{Text: "My Results", Action: ActionMyResults}})
	if admin {
		rows = append(rows, []transport.Button{{Text: "Admin Panel", Action: ActionAdminPanel}})
	}
	return transport.Message{UserID: userID, Text: "Select a task:", Buttons: rows}
}

func partMenu(userID int64, task *script.Task) transport.Message {
	rows := make([][]transport.Button, 0, len(task.Parts)+1)
	for i, p := range task.Parts {
		rows = append(rows, []transport.Button{{Text: p.Name, Action: PartAction(i)}})
	}
	rows = append(rows, backButton())
	return transport.Message{
		UserID:  userID,
		Text:    task.Title + "\nSelect a part:",
		Buttons: rows,
	}
}

func prepText(p *script.Part) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Preparation time: %d seconds\n\n", p.PrepSeconds)

	switch {
	case p.IsDiscussion():
		fmt.Fprintf(&b, "Topic: %s\n\nPros:\n", p.Topic)
		writeBullets(&b, p.Pros)
		b.WriteString("\n\nCons:\n")
		writeBullets(&b, p.Cons)
	case p.QuestionCount() > 1:
		b.WriteString("Questions:\n")
		for i, q := range p.Questions {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s", i+1, q)
		}
	default:
		q, _ := p.Question(0)
		fmt.Fprintf(&b, "Question: %s", q)
	}
	return b.String()
}

func writeBullets(b *strings.Builder, items []string) {
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- " + it)
	}
}

func questionText(index, count int, question string, window time.Duration) string {
	return fmt.Sprintf("Question %d/%d:\n%s\n\nYou have %s to answer.",
		index+1, count, question, formatWindow(window))
}

func formatWindow(d time.Duration) string {
	secs := d.Seconds()
	if secs == float64(int(secs)) {
		return fmt.Sprintf("%d seconds", int(secs))
	}
	return fmt.Sprintf("%.1f seconds", secs)
}

func reportText(report string) string {
	return "Evaluation Results:\n\n" + report
}

func adminPanel(userID int64) transport.Message {
	return transport.Message{
		UserID: userID,
		Text:   "Admin Panel:",
		Buttons: [][]transport.Button{
			{{Text: "Grant Access", Action: ActionGrantAccess}},
			{{Text: "View Users", Action: ActionViewUsers}},
			backButton(),
		},
	}
}

// GrantPrompt is the force-reply prompt asking the admin for a user id.
const GrantPrompt = "Please enter the user ID you want to grant access to:"

func resultsText(catalog *script.Catalog, p *store.Profile) string {
	if p == nil || len(p.Scores) == 0 {
		return "You have no results yet. Complete a task part to get your first evaluation."
	}

	keys := make([]store.ScoreKey, 0, len(p.Scores))
	for k := range p.Scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TaskID != keys[j].TaskID {
			return keys[i].TaskID < keys[j].TaskID
		}
		return keys[i].PartIndex < keys[j].PartIndex
	})

	var b strings.Builder
	b.WriteString("Your results:")
	for _, k := range keys {
		s := p.Scores[k]
		fmt.Fprintf(&b, "\n\n%s (%s)\n%s", partLabel(catalog, k), s.RecordedAt.Format("2006-01-02"), s.Report)
	}
	return b.String()
}

func partLabel(catalog *script.Catalog, k store.ScoreKey) string {
	task, ok := catalog.Task(k.TaskID)
	if !ok {
		return fmt.Sprintf("Task %d - Part %d", k.TaskID, k.PartIndex+1)
	}
	part, ok := catalog.Part(k.TaskID, k.PartIndex)
	if !ok {
		return fmt.Sprintf("%s - Part %d", task.Title, k.PartIndex+1)
	}
	return scoreLabel(task.Title, part.Name)
}

func usersText(profiles []store.Profile) string {
	if len(profiles) == 0 {
		return "No users yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Users (%d):", len(profiles))
	for _, p := range profiles {
		access := "no access"
		if p.HasAccess {
			access = "access"
		}
		name := p.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "\n%d  %s  [%s]", p.UserID, name, access)
	}
	return b.String()
}
