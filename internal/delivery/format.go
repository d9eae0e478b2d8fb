package delivery

import (
	"fmt"
	"strings"

	"github.com/amishk599/ajirawise/internal/model"
)

// FormatJob renders one job alert. remaining is the balance after the debit.
func FormatJob(job model.JobPosting, interest string, remaining int, trigger Trigger) string {
	company := orDefault(job.Company, "Not specified")
	location := orDefault(job.Location, "Kenya")
	source := orDefault(job.Source, "Job Board")

	var b strings.Builder
	if trigger == TriggerScheduled {
		fmt.Fprintf(&b, "🔔 *Scheduled Job Alert - %s*\n\n", interest)
	} else {
		fmt.Fprintf(&b, "🎯 *New %s Job Alert:*\n\n", interest)
	}
	fmt.Fprintf(&b, "📋 *%s*\n", job.Title)
	fmt.Fprintf(&b, "🏢 Company: %s\n", company)
	fmt.Fprintf(&b, "📍 Location: %s\n", location)
	fmt.Fprintf(&b, "🔗 %s\n", job.URL)
	fmt.Fprintf(&b, "🌐 Source: %s\n\n", source)
	b.WriteString("💰 Credit used: 1\n")
	fmt.Fprintf(&b, "💳 Remaining: %d\n\n", remaining)
	if trigger == TriggerScheduled {
		b.WriteString("Apply now! 🚀")
	} else {
		b.WriteString("Good luck! 🍀")
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
