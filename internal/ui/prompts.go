package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// PromptYesNo asks a yes/no question on the terminal and returns the
// answer. Non-interactive callers get the default without blocking.
func PromptYesNo(question string, defaultYes bool) bool {
	if !IsTerminal() {
		fmt.Printf("%s (non-interactive, defaulting to %t)\n", question, defaultYes)
		return defaultYes
	}

	answer := defaultYes
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&answer).
		Run()
	if err != nil {
		fmt.Printf("(error reading input, defaulting to %t)\n", defaultYes)
		return defaultYes
	}
	return answer
}

// Prompt asks for a single line of input with a default.
func Prompt(question, defaultValue string) string {
	if !IsTerminal() {
		fmt.Printf("%s (non-interactive, defaulting to %q)\n", question, defaultValue)
		return defaultValue
	}

	input := defaultValue
	err := huh.NewInput().
		Title(question).
		Placeholder(defaultValue).
		Value(&input).
		Run()
	if err != nil {
		fmt.Printf("(error reading input, defaulting to %q)\n", defaultValue)
		return defaultValue
	}
	if input == "" {
		return defaultValue
	}
	return input
}

// ConfirmCriteria walks success criteria one by one and returns the
// per-criterion confirmations keyed by index.
func ConfirmCriteria(criteria []string) (map[int]bool, error) {
	answers := make(map[int]bool, len(criteria))
	if !IsTerminal() {
		return answers, nil
	}

	for i, c := range criteria {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Criterion %d/%d met?", i+1, len(criteria))).
			Description(c).
			Affirmative("Met").
			Negative("Not met").
			Value(&confirmed).
			Run()
		if err != nil {
			return answers, err
		}
		answers[i] = confirmed
	}
	return answers, nil
}
