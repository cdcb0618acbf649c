package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

type commissionApprovedData struct {
	baseEmailData
	RecipientName string
	LeadName      string
	Amount        string
}

type commissionPaidData struct {
	baseEmailData
	RecipientName    string
	LeadName         string
	Amount           string
	PaymentReference string
}

type commissionsEligibleData struct {
	baseEmailData
	RecipientName string
	Count         int
}

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderEmailTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
