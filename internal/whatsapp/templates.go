package whatsapp

import (
	"fmt"
	"strconv"

	"github.com/iwanfadzly/call/platform/apperr"
)

// Template names enqueued by other modules.
const (
	TemplatePaymentReceived = "payment_received"
	TemplateCODConfirmed    = "cod_confirmed"
	TemplateFollowUp        = "follow_up"
)

// RenderTemplate builds the message body for a named template. Data keys come
// from the enqueuing module; missing keys render as empty strings rather than
// failing the job.
func RenderTemplate(name string, data map[string]string) (string, error) {
	get := func(key string) string { return data[key] }

	switch name {
	case TemplatePaymentReceived:
		return fmt.Sprintf(
			"Thank you! We have received your payment of %s for order %s. We will process it right away.",
			formatAmount(get("totalCents"), get("currency")), get("orderRef")), nil

	case TemplateCODConfirmed:
		return fmt.Sprintf(
			"Your order %s is confirmed for cash on delivery. Total: %s. Please prepare the exact amount.",
			get("orderRef"), formatAmount(get("totalCents"), get("currency"))), nil

	case TemplateFollowUp:
		return fmt.Sprintf(
			"Hi %s! Just following up on our earlier conversation. Reply COD to confirm cash on delivery, or PAID if you have already transferred.",
			get("name")), nil

	default:
		return "", apperr.Validation(fmt.Sprintf("unknown message template %q", name))
	}
}

// formatAmount turns cents into "MYR 49.90". Falls back to the raw value when
// the cents string is not numeric.
func formatAmount(cents, currency string) string {
	n, err := strconv.ParseInt(cents, 10, 64)
	if err != nil {
		return currency + " " + cents
	}
	return fmt.Sprintf("%s %d.%02d", currency, n/100, n%100)
}
