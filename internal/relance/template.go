package relance

import (
	"regexp"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/metrics"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// amountPrinter formats monetary amounts the way the letters are written,
// with French digit grouping.
var amountPrinter = message.NewPrinter(language.French)

// TemplateContext builds the substitution variables for a client and their
// unpaid invoices. The driving invoice is the most overdue one.
func TemplateContext(client clients.Client, invs []invoices.Invoice, asOf time.Time) map[string]string {
	vars := map[string]string{
		"client_name":    client.Name,
		"client_company": client.Company,
		"total_amount":   FormatAmount(metrics.ClientTotalOutstanding(invs)),
	}

	var driving *invoices.Invoice
	worst := -1
	for i := range invs {
		inv := &invs[i]
		if inv.Status == invoices.StatusPaid {
			continue
		}
		if days := metrics.DaysOverdue(inv.DueDate, asOf); days > worst {
			worst = days
			driving = inv
		}
	}
	if driving != nil {
		vars["invoice_number"] = driving.Number
		vars["amount"] = FormatAmount(driving.Amount)
		vars["due_date"] = driving.DueDate.Format("02/01/2006")
		vars["days_overdue"] = strconv.Itoa(worst)
	}
	return vars
}

// Render substitutes {{variable}} placeholders in the template body.
// Unknown variables keep their literal token: template completeness is not
// validated at save time, and a hole in the letter beats not sending it.
func Render(content string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}

// FormatAmount renders a monetary amount with two decimals and locale
// digit grouping.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%v €", number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
