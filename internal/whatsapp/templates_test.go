package whatsapp

import (
	"strings"
	"testing"

	"github.com/iwanfadzly/call/platform/apperr"
)

func TestRenderTemplatePaymentReceived(t *testing.T) {
	msg, err := RenderTemplate(TemplatePaymentReceived, map[string]string{
		"orderRef":   "a1b2c3d4",
		"totalCents": "4990",
		"currency":   "MYR",
	})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if !strings.Contains(msg, "MYR 49.90") {
		t.Errorf("message %q missing formatted amount", msg)
	}
	if !strings.Contains(msg, "a1b2c3d4") {
		t.Errorf("message %q missing order reference", msg)
	}
}

func TestRenderTemplateCODConfirmed(t *testing.T) {
	msg, err := RenderTemplate(TemplateCODConfirmed, map[string]string{
		"orderRef":   "a1b2c3d4",
		"totalCents": "10000",
		"currency":   "MYR",
	})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if !strings.Contains(msg, "cash on delivery") || !strings.Contains(msg, "MYR 100.00") {
		t.Errorf("message = %q", msg)
	}
}

func TestRenderTemplateUnknown(t *testing.T) {
	if _, err := RenderTemplate("no_such_template", nil); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderTemplateMissingDataDoesNotFail(t *testing.T) {
	if _, err := RenderTemplate(TemplateFollowUp, nil); err != nil {
		t.Fatalf("missing data must render empty, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents    string
		currency string
		want     string
	}{
		{"4990", "MYR", "MYR 49.90"},
		{"100", "MYR", "MYR 1.00"},
		{"5", "MYR", "MYR 0.05"},
		{"0", "MYR", "MYR 0.00"},
		{"oops", "MYR", "MYR oops"},
	}
	for _, tc := range cases {
		if got := formatAmount(tc.cents, tc.currency); got != tc.want {
			t.Errorf("formatAmount(%q) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
