package notify

import (
	"fmt"
	"strings"

	"mess/internal/digest"
	"mess/internal/meal"
)

const maxNamesShown = 5

var mealEmoji = map[meal.Meal]string{
	meal.Breakfast: "🍳",
	meal.Lunch:     "🍛",
	meal.Dinner:    "🍽️",
}

// Format renders a window summary into a notification title/body pair.
// It is pure: no store, no transport. The empty pair is the "do not
// send" sentinel, returned exactly when the window has no activity and
// quiet windows are configured silent.
func Format(sum digest.WindowSummary, stats digest.Stats, cfg Config) (title, body string) {
	footer := fmt.Sprintf("Today: %d/%d (%d%%)", stats.Present, stats.Total, stats.Percentage)

	if len(sum.Meals) == 0 {
		if !cfg.ShowWhenNoActivity {
			return "", ""
		}
		mins := int(sum.End.Sub(sum.Start).Minutes())
		return "Mess Attendance", fmt.Sprintf("No new attendance in the last %d minutes.\n%s", mins, footer)
	}

	title = fmt.Sprintf("Mess Attendance (%s - %s)",
		sum.Start.Format("15:04"), sum.End.Format("15:04"))

	var lines []string
	for _, ma := range sum.Meals {
		noun := "students"
		if ma.Count == 1 {
			noun = "student"
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d %s marked",
			mealEmoji[ma.Meal], ma.Meal.Title(), ma.Count, noun))
		if cfg.ShowStudentNames {
			lines = append(lines, nameLine(ma.Students))
		}
	}
	lines = append(lines, footer)
	return title, strings.Join(lines, "\n")
}

func nameLine(refs []digest.StudentRef) string {
	names := make([]string, 0, maxNamesShown)
	for i, ref := range refs {
		if i == maxNamesShown {
			break
		}
		names = append(names, ref.Name)
	}
	line := strings.Join(names, ", ")
	if extra := len(refs) - maxNamesShown; extra > 0 {
		line += fmt.Sprintf(" +%d more", extra)
	}
	return line
}
