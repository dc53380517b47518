package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DukeRupert/challan/internal/domain"
)

var (
	printer = message.NewPrinter(language.MustParse("en-IN"))
	titler  = cases.Title(language.English)
)

// FormatAmount renders a rupee amount with Indian digit grouping,
// e.g. "Rs 1,500.00".
func FormatAmount(amount decimal.Decimal) string {
	return printer.Sprintf("Rs %.2f", amount.Round(2).InexactFloat64())
}

// Title turns an identifier such as "payment_received" into "Payment Received".
func Title(s string) string {
	return titler.String(strings.ReplaceAll(s, "_", " "))
}

// amountOf reads the amount payload, which may be a decimal or a string.
func amountOf(event domain.Event) string {
	switch v := event.Payload[domain.PayloadAmount].(type) {
	case decimal.Decimal:
		return FormatAmount(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return v
		}
		return FormatAmount(d)
	}
	return ""
}

// Subject returns the email subject for an event.
func Subject(event domain.Event) string {
	number := event.String(domain.PayloadChallanNumber)
	if number == "" {
		return Title(string(event.Kind))
	}
	return fmt.Sprintf("%s: %s", Title(string(event.Kind)), number)
}

// Body renders the plain-text body shared by email and SMS.
func Body(event domain.Event) string {
	number := event.String(domain.PayloadChallanNumber)
	amount := amountOf(event)

	var b strings.Builder
	if name := event.String(domain.PayloadRecipientName); name != "" {
		fmt.Fprintf(&b, "Dear %s, ", name)
	}

	switch event.Kind {
	case domain.EventChallanCreated:
		fmt.Fprintf(&b, "challan %s for %s on vehicle %s has been issued. Fine: %s, due by %s.",
			number, Title(event.String(domain.PayloadViolation)), event.String(domain.PayloadVehicle),
			amount, event.String(domain.PayloadDueDate))
	case domain.EventPaymentReceived:
		fmt.Fprintf(&b, "payment of %s for challan %s was received. Transaction: %s.",
			amount, number, event.String(domain.PayloadTransactionID))
	case domain.EventChallanDisputed:
		fmt.Fprintf(&b, "your dispute for challan %s has been recorded and will be reviewed.", number)
	case domain.EventPaymentRefunded:
		fmt.Fprintf(&b, "a refund of %s for challan %s has been issued.", amount, number)
	default:
		fmt.Fprintf(&b, "%s for challan %s.", Title(string(event.Kind)), number)
	}
	return b.String()
}
