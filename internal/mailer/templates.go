package mailer

import (
	"bytes"
	"text/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "verification"}}Hello {{.Name}},

Your email verification code is {{.Code}}. It expires in {{.Minutes}} minutes.
{{end}}
{{define "temporary_password"}}Hello {{.Name}},

A temporary password was set on your account: {{.Password}}
Sign in with it and change it from your profile.
{{end}}
{{define "order_completed"}}Hello {{.Name}},

Your order {{.OrderID}} is complete. Total paid: {{.Total}} Toman.
{{range .Items}}- {{.}}
{{end}}{{if .RefID}}Reference: {{.RefID}}
{{end}}{{end}}
{{define "payment_failed"}}Hello {{.Name}},

The payment for order {{.OrderID}} did not go through. The items are back in your cart.
{{end}}
`))

func render(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return ""
	}
	return buf.String()
}

func VerificationCode(to, name, code string, minutes int) Message {
	return Message{
		To:      to,
		Subject: "Email verification code",
		Text: render("verification", map[string]any{
			"Name": name, "Code": code, "Minutes": minutes,
		}),
	}
}

func TemporaryPassword(to, name, password string) Message {
	return Message{
		To:      to,
		Subject: "Your temporary password",
		Text:    render("temporary_password", map[string]any{"Name": name, "Password": password}),
	}
}

func OrderCompleted(to, name, orderID string, total int64, items []string, refID string) Message {
	return Message{
		To:      to,
		Subject: "Order completed",
		Text: render("order_completed", map[string]any{
			"Name": name, "OrderID": orderID, "Total": total, "Items": items, "RefID": refID,
		}),
	}
}

func PaymentFailed(to, name, orderID string) Message {
	return Message{
		To:      to,
		Subject: "Payment failed",
		Text:    render("payment_failed", map[string]any{"Name": name, "OrderID": orderID}),
	}
}
