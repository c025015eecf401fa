// Package script holds the static exam script: tasks, their parts, the
// questions of each part and the preparation/answer time budgets.
package script

import (
	"sort"
	"time"
)

// Task is a top-level exam task selectable from the main menu.
type Task struct {
	ID    int
	Title string
	Parts []Part

	// Restricted is true when the task lies beyond the catalog's open set
	// and therefore needs an access grant.
	Restricted bool
}

// Part is a scored sub-unit of a task. All questions of a part share one
// preparation period and one answer budget.
type Part struct {
	Name      string
	Questions []string

	// PrepSeconds is the preparation time before the first question.
	PrepSeconds int

	// AnswerSeconds is the total answer budget of the part, split evenly
	// across its questions.
	AnswerSeconds int

	// Criteria is the rating-criteria tag forwarded to the evaluator.
	Criteria string

	// MaxScore is the top of the scoring band for this part (0 = default).
	MaxScore int

	// Topic, Pros and Cons are set for discussion parts.
	Topic string
	Pros  []string
	Cons  []string
}

// QuestionCount returns the number of questions in the part.
func (p Part) QuestionCount() int {
	return len(p.Questions)
}

// Question returns the prompt at index i.
func (p Part) Question(i int) (string, bool) {
	if i < 0 || i >= len(p.Questions) {
		return "", false
	}
	return p.Questions[i], true
}

// PrepTime returns the preparation period as a duration.
func (p Part) PrepTime() time.Duration {
	return time.Duration(p.PrepSeconds) * time.Second
}

// QuestionWindow returns the time allowed for answering a single question.
func (p Part) QuestionWindow() time.Duration {
	if len(p.Questions) == 0 {
		return 0
	}
	return time.Duration(p.AnswerSeconds) * time.Second / time.Duration(len(p.Questions))
}

// IsDiscussion reports whether the part is a topic with pros and cons.
func (p Part) IsDiscussion() bool {
	return p.Topic != ""
}

// Entry is one flattened question of the script.
type Entry struct {
	TaskID        int
	PartIndex     int
	QuestionIndex int
	Prompt        string
	PrepSeconds   int
	AnswerSeconds int
}

// Catalog is the immutable, validated exam script.
type Catalog struct {
	openTasks int
	tasks     []*Task
	byID      map[int]*Task
}

func newCatalog(openTasks int, tasks []*Task) *Catalog {
	c := &Catalog{
		openTasks: openTasks,
		tasks:     tasks,
		byID:      make(map[int]*Task, len(tasks)),
	}
	sort.Slice(c.tasks, func(i, j int) bool { return c.tasks[i].ID < c.tasks[j].ID })
	for _, t := range c.tasks {
		t.Restricted = t.ID > openTasks
		c.byID[t.ID] = t
	}
	return c
}

// OpenTasks returns the number of tasks available without an access grant.
func (c *Catalog) OpenTasks() int {
	return c.openTasks
}

// Tasks returns all tasks ordered by id.
func (c *Catalog) Tasks() []*Task {
	return c.tasks
}

// Task looks up a task by id.
func (c *Catalog) Task(id int) (*Task, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Part looks up a part by task id and part index.
func (c *Catalog) Part(taskID, partIndex int) (*Part, bool) {
	t, ok := c.byID[taskID]
	if !ok || partIndex < 0 || partIndex >= len(t.Parts) {
		return nil, false
	}
	return &t.Parts[partIndex], true
}

// Entries flattens the catalog into one entry per question.
func (c *Catalog) Entries() []Entry {
	var out []Entry
	for _, t := range c.tasks {
		for pi, p := range t.Parts {
			for qi, q := range p.Questions {
				out = append(out, Entry{
					TaskID:        t.ID,
					PartIndex:     pi,
					QuestionIndex: qi,
					Prompt:        q,
					PrepSeconds:   p.PrepSeconds,
					AnswerSeconds: p.AnswerSeconds,
				})
			}
		}
	}
	return out
}
