package exam

import (
	"fmt"
	"strconv"
	"strings"
)

// Button actions understood by the bot.
const (
	ActionAdminPanel  = "admin_panel"
	ActionBackToTasks = "back_to_tasks"
	ActionGrantAccess = "grant_access"
	ActionViewUsers   = "view_users"
	ActionMyResults   = "my_results"

	taskPrefix = "task_"
	partPrefix = "part_"
)

// TaskAction returns the button action selecting taskID.
func TaskAction(taskID int) string {
	return taskPrefix + strconv.Itoa(taskID)
}

// PartAction returns the button action starting part partIndex.
func PartAction(partIndex int) string {
	return partPrefix + strconv.Itoa(partIndex)
}

// ParseTaskAction extracts the task id from a task_N action.
func ParseTaskAction(action string) (int, bool) {
	return parseIndexed(action, taskPrefix)
}

// ParsePartAction extracts the part index from a part_N action.
func ParsePartAction(action string) (int, bool) {
	return parseIndexed(action, partPrefix)
}

func parseIndexed(action, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(action, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseUserID parses an admin-entered user id.
func ParseUserID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidTarget(s)
	}
	return id, nil
}

func scoreLabel(title, part string) string {
	return fmt.Sprintf("%s - %s", title, part)
}
