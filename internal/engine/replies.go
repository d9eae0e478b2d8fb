package engine

import (
	"fmt"
	"strings"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/delivery"
	"github.com/amishk599/ajirawise/internal/model"
)

// categoryBlurbs describe each catalog entry in the menu.
var categoryBlurbs = map[string]string{
	"Data Entry":                "Data input and processing jobs",
	"Sales & Marketing":         "Sales, marketing, and business development",
	"Delivery & Logistics":      "Delivery, transport, and logistics roles",
	"Customer Service":          "Customer support and service positions",
	"Finance & Accounting":      "Financial, accounting, and bookkeeping jobs",
	"Admin & Office Work":       "Administrative and office support roles",
	"Teaching / Training":       "Education, training, and tutoring positions",
	"Internships / Attachments": "Internship and attachment opportunities",
	"Software Engineering":      "Programming, development, and tech roles",
}

// Replies renders every user-facing text. Values are plain strings with
// WhatsApp-style *bold* markup, which Telegram shows verbatim.
type Replies struct {
	opts Options
}

// Menu lists the catalog. Returning users see their current interest first.
func (r Replies) Menu(user *model.UserProfile) string {
	var b strings.Builder
	if user != nil && user.Interest != "" {
		fmt.Fprintf(&b, "👋 Welcome back! You're currently interested in *%s* jobs.\n\n", user.Interest)
	}
	b.WriteString("🔍 *Welcome to AjiraWise - Your Smart Job Assistant!*\n\n")
	b.WriteString("Please reply with your job interest:\n")
	for _, c := range catalog.Categories {
		fmt.Fprintf(&b, "• *%s* - %s\n", c, categoryBlurbs[c])
	}
	b.WriteString("\nWhat type of work are you looking for?")
	if r.opts.Advisory {
		b.WriteString("\n\n🤖 I can also answer career questions! Try asking:\n")
		b.WriteString("• 'What does a data analyst do?'\n")
		b.WriteString("• 'Help me choose a job category'")
	}
	return b.String()
}

// CategorySet confirms an interest and asks for credits when the balance is zero.
func (r Replies) CategorySet(user *model.UserProfile, category string) string {
	var head string
	switch {
	case user == nil || user.Interest == "":
		head = fmt.Sprintf("✅ Great! You're now registered for *%s* job alerts.", category)
	case user.Interest == category:
		head = fmt.Sprintf("✅ You already have *%s* jobs set as your interest.", category)
	default:
		head = fmt.Sprintf("✅ Interest updated to *%s* jobs!", category)
	}

	if user != nil && user.Balance > 0 {
		return fmt.Sprintf("%s\n\n💳 Current Balance: *%d* credits\n\nSend *jobs* to get job alerts!", head, user.Balance)
	}
	channelID := ""
	if user != nil {
		channelID = user.ChannelID
	}
	return head + "\n\n" + r.CreditPrompt(channelID)
}

// CreditPrompt tells the user how to get credits in the configured mode.
func (r Replies) CreditPrompt(channelID string) string {
	if r.opts.Mode == CreditsMpesa {
		return r.PayInstructions(channelID)
	}
	return fmt.Sprintf("💰 *Choose your credits:*\nSend a number from *%d to %d* to get that many job alert credits.\n\nExample: Send *5* to get 5 credits",
		r.opts.MinTopUp, r.opts.MaxTopUp)
}

// PayInstructions explains the M-Pesa paybill top-up.
func (r Replies) PayInstructions(channelID string) string {
	account := "your phone number"
	if channelID != "" && !strings.HasPrefix(channelID, "tg:") {
		account = strings.TrimPrefix(channelID, "+")
	}
	paybill := r.opts.Paybill
	if paybill == "" {
		paybill = "(not configured)"
	}
	return fmt.Sprintf("💰 *Buy credits with M-Pesa:*\n1. Lipa na M-Pesa → Paybill *%s*\n2. Account: *%s*\n3. Every KES %d buys 1 job alert credit\n\nCredits are added as soon as the payment is confirmed.",
		paybill, account, r.opts.KESPerCredit)
}

// ToppedUp confirms an instant top-up. after is the profile with the new balance.
func (r Replies) ToppedUp(amount int, after model.UserProfile) string {
	return fmt.Sprintf("✅ *Credits Added Successfully!*\n\n💰 Added: *%d* credits\n💳 Total Balance: *%d* credits\n🎯 Job Interest: *%s*\n\nSend *jobs* to start receiving job alerts!",
		amount, after.Balance, after.Interest)
}

// RangeError rejects a number outside the top-up range.
func (r Replies) RangeError() string {
	return fmt.Sprintf("❌ Please send a number between *%d and %d* to select your credits.\n\nExample: Send *5* to get 5 credits",
		r.opts.MinTopUp, r.opts.MaxTopUp)
}

// InterestFirst asks for a category before anything else.
func (r Replies) InterestFirst() string {
	return "❌ Please set your job interest first. Send *hi* to see options."
}

// NoCredits prompts a top-up instead of fetching jobs.
func (r Replies) NoCredits() string {
	if r.opts.Mode == CreditsMpesa {
		return "❌ No credits available!\n\n" + r.PayInstructions("")
	}
	return "❌ No credits available!\n\n" + r.CreditPrompt("")
}

// Balance shows the current balance and interest.
func (r Replies) Balance(user *model.UserProfile) string {
	if user == nil {
		return "❌ You're not registered yet. Send *hi* to get started!"
	}
	interest := user.Interest
	if interest == "" {
		interest = "Not set"
	}
	next := "Send *jobs* to get job alerts!"
	switch {
	case user.Interest == "":
		next = "Send *hi* to choose your job interest."
	case user.Balance <= 0 && r.opts.Mode == CreditsMpesa:
		next = fmt.Sprintf("Pay via M-Pesa Paybill *%s* to add credits.", r.opts.Paybill)
	case user.Balance <= 0:
		next = fmt.Sprintf("Send a number (%d-%d) to add more credits!", r.opts.MinTopUp, r.opts.MaxTopUp)
	}
	return fmt.Sprintf("💳 *Account Balance:*\nCredits: *%d*\nJob Interest: *%s*\n\n%s", user.Balance, interest, next)
}

// Unrecognized is the generic fallback and the advisor failure reply.
func (r Replies) Unrecognized() string {
	top := fmt.Sprintf("• Send *%d-%d* to add credits", r.opts.MinTopUp, r.opts.MaxTopUp)
	if r.opts.Mode == CreditsMpesa {
		top = "• Pay via M-Pesa to add credits"
	}
	return "🤔 Sorry, I didn't understand that. Send *HELP* to see the menu.\n\n" +
		"You can also:\n" +
		"• Send *jobs* to get job alerts\n" +
		"• Send *balance* to check credits\n" +
		top
}

// Delivered summarizes a delivery run. Job messages themselves are sent by
// the delivery protocol; this is the closing reply.
func (r Replies) Delivered(res delivery.Result, interest string) string {
	switch res.Outcome {
	case delivery.OutcomeDelivered:
		noun := "job"
		if len(res.Sent) != 1 {
			noun = "jobs"
		}
		tail := "Send *jobs* again for more."
		if res.Balance <= 0 {
			tail = "You're out of credits.\n\n" + r.CreditPrompt("")
		}
		return fmt.Sprintf("📬 Sent %d new *%s* %s.\n💳 Remaining: *%d* credits\n\n%s", len(res.Sent), interest, noun, res.Balance, tail)
	case delivery.OutcomeNoInterest:
		return r.InterestFirst()
	case delivery.OutcomeNoCredit:
		return r.NoCredits()
	case delivery.OutcomeAllSent:
		return fmt.Sprintf("🔍 All current *%s* jobs have been sent to you!\n\n💡 *What you can do:*\n• Try a different job category (send *hi*)\n• Check back in a few hours for new jobs\n• Send *balance* to see your credits\n\n🔄 New jobs are added regularly!", interest)
	default:
		return fmt.Sprintf("😔 No new *%s* jobs available right now. We'll keep looking!", interest)
	}
}

// InternalError is sent when storage fails mid-conversation.
func (r Replies) InternalError() string {
	return "❌ Sorry, there was an error. Please try again later."
}
