package script

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultScript []byte

// DefaultMaxScore is used for parts that do not set max_score.
const DefaultMaxScore = 5

type fileScript struct {
	OpenTasks *int       `yaml:"open_tasks"`
	Tasks     []fileTask `yaml:"tasks"`
}

type fileTask struct {
	ID    int        `yaml:"id"`
	Title string     `yaml:"title"`
	Parts []filePart `yaml:"parts"`
}

type filePart struct {
	Name          string   `yaml:"name"`
	Questions     []string `yaml:"questions"`
	PrepSeconds   int      `yaml:"prep_seconds"`
	AnswerSeconds int      `yaml:"answer_seconds"`
	Criteria      string   `yaml:"criteria"`
	MaxScore      int      `yaml:"max_score"`
	Topic         string   `yaml:"topic"`
	Pros          []string `yaml:"pros"`
	Cons          []string `yaml:"cons"`
}

// DefaultBytes returns the embedded default script.
func DefaultBytes() []byte {
	return defaultScript
}

// Default returns the catalog built from the embedded script.
func Default() *Catalog {
	c, err := Parse(defaultScript)
	if err != nil {
		panic(fmt.Sprintf("embedded script is invalid: %v", err))
	}
	return c
}

// Load reads a script file. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates raw YAML against the script schema and builds a Catalog.
func Parse(data []byte) (*Catalog, error) {
	if errs := Validate(data); len(errs) > 0 {
		return nil, &ValidationError{Problems: errs}
	}

	var fs fileScript
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}

	openTasks := len(fs.Tasks)
	if fs.OpenTasks != nil {
		openTasks = *fs.OpenTasks
	}

	seen := make(map[int]bool, len(fs.Tasks))
	tasks := make([]*Task, 0, len(fs.Tasks))
	for _, ft := range fs.Tasks {
		if seen[ft.ID] {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("/tasks: duplicate task id %d", ft.ID)}}
		}
		seen[ft.ID] = true

		t := &Task{ID: ft.ID, Title: ft.Title}
		for _, fp := range ft.Parts {
			maxScore := fp.MaxScore
			if maxScore == 0 {
				maxScore = DefaultMaxScore
			}
			t.Parts = append(t.Parts, Part{
				Name:          fp.Name,
				Questions:     fp.Questions,
				PrepSeconds:   fp.PrepSeconds,
				AnswerSeconds: fp.AnswerSeconds,
				Criteria:      fp.Criteria,
				MaxScore:      maxScore,
				Topic:         fp.Topic,
				Pros:          fp.Pros,
				Cons:          fp.Cons,
			})
		}
		tasks = append(tasks, t)
	}

	return newCatalog(openTasks, tasks), nil
}
