package application

import "strings"

// containsWord does a case-insensitive substring match of trigger in content.
func containsWord(content, trigger string) bool {
	if trigger == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(trigger))
}
