package mail

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prepvidya/PrepVidya/app/models"
	"github.com/prepvidya/PrepVidya/internal/pkg/env"
)

// PurchaseNotifier emails developer addresses about new purchase grants.
// Intended for internal bookkeeping/alerts, not a user-facing invoice.
type PurchaseNotifier struct{}

func NewPurchaseNotifier() *PurchaseNotifier {
	return &PurchaseNotifier{}
}

// NotifyPurchase sends a best-effort notification. Errors are logged and
// swallowed: a failed email must never fail or roll back the grant.
func (n *PurchaseNotifier) NotifyPurchase(platform string, user *models.User, plan *models.Plan, grant *models.Subscription) {
	recipients := parseEmails(env.GetEnv("DEVELOPER_EMAILS", ""))
	if len(recipients) == 0 {
		return
	}
	if env.GetEnv("SMTP_HOST", "") == "" {
		return
	}

	planName := ""
	if plan != nil {
		planName = plan.Name
	}
	subject := fmt.Sprintf("[%s] New purchase: %s", platform, planName)

	var b strings.Builder
	b.WriteString("<h3>New purchase</h3><ul>")
	fmt.Fprintf(&b, "<li>Platform: %s</li>", platform)
	fmt.Fprintf(&b, "<li>Timestamp: %s</li>", time.Now().UTC().Format(time.RFC3339))
	if user != nil {
		fmt.Fprintf(&b, "<li>User: %s (%s, id=%d)</li>", user.Name, user.Email, user.ID)
	}
	if plan != nil {
		fmt.Fprintf(&b, "<li>Plan: %s (id=%d)</li>", plan.Name, plan.ID)
	}
	if grant != nil {
		fmt.Fprintf(&b, "<li>Amount: %d</li>", grant.Amount)
		fmt.Fprintf(&b, "<li>Payment ID: %s</li>", grant.PaymentID)
		fmt.Fprintf(&b, "<li>Order ID: %s</li>", grant.OrderID)
		fmt.Fprintf(&b, "<li>Start: %s</li>", grant.StartDate.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "<li>End: %s</li>", grant.EndDate.UTC().Format(time.RFC3339))
		if grant.Notes != "" {
			fmt.Fprintf(&b, "<li>Notes: %s</li>", grant.Notes)
		}
	}
	b.WriteString("</ul>")

	for _, to := range recipients {
		if err := SendMail(to, subject, b.String()); err != nil {
			log.Printf("purchase notification email to %s failed: %v", to, err)
		}
	}
}

func parseEmails(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
