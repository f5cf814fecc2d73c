package jobs

import (
	"fmt"
	"strings"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/service"
)

const reminderSubject = "QuizNexus Daily Reminder"

// formatReminder строит текст напоминания: причины, списки викторин и необязательный блок советов
func formatReminder(user *entity.User, reasons []string, newQuizzes, pending []entity.Quiz, advice *service.Advice) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s!\n\n", user.DisplayName())
	b.WriteString("Here is why we are reaching out today:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "  - %s\n", r)
	}

	if len(newQuizzes) > 0 {
		b.WriteString("\nNew quizzes added:\n")
		for _, q := range newQuizzes {
			fmt.Fprintf(&b, "  - %s (scheduled for %s)\n", q.Title, q.DateOfQuiz.UTC().Format("January 02, 2006"))
		}
	}

	if len(pending) > 0 {
		b.WriteString("\nUpcoming quizzes you haven't attempted:\n")
		for _, q := range pending {
			fmt.Fprintf(&b, "  - %s (date: %s, duration: %d minutes)\n", q.Title, q.DateOfQuiz.UTC().Format("January 02, 2006"), q.DurationMinutes)
		}
	}

	if advice != nil && (len(advice.WeakTopics) > 0 || len(advice.Suggestions) > 0) {
		b.WriteString("\nStudy insights:\n")
		if len(advice.WeakTopics) > 0 {
			fmt.Fprintf(&b, "  Topics that need your attention: %s\n", strings.Join(advice.WeakTopics, ", "))
		}
		for _, s := range advice.Suggestions {
			fmt.Fprintf(&b, "  * %s\n", s)
		}
		for _, area := range advice.FocusAreas {
			fmt.Fprintf(&b, "  Focus: %s - %d%% (%s)\n", area.Quiz, area.Score, area.Subject)
		}
		if advice.Motivation != "" {
			fmt.Fprintf(&b, "\n%s\n", advice.Motivation)
		}
	}

	b.WriteString("\nSee you on QuizNexus!\n")
	return b.String()
}
