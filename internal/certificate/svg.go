package certificate

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
	"time"

	"eventhub/internal/model"
)

// Data is what gets printed on a certificate.
type Data struct {
	Heading        string
	Name           string
	Reason         string
	Title          string
	EventTitle     string
	Date           time.Time
	Ranking        *int
	Members        []string
	VerificationID string
}

var funcs = template.FuncMap{
	"x": func(s string) string {
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
	"date":    func(t time.Time) string { return t.Format("January 2, 2006") },
	"ordinal": ordinal,
	"join":    strings.Join,
}

var svg = template.Must(template.New("certificate").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="1123" height="794" viewBox="0 0 1123 794">
  <rect width="1123" height="794" fill="#fdfbf5"/>
  <rect x="30" y="30" width="1063" height="734" fill="none" stroke="#1f3b63" stroke-width="6"/>
  <rect x="48" y="48" width="1027" height="698" fill="none" stroke="#c9a646" stroke-width="2"/>
  <g font-family="Georgia, serif" text-anchor="middle" fill="#1f3b63">
    <text x="561" y="160" font-size="54" letter-spacing="4">{{x .Heading}}</text>
    <text x="561" y="240" font-size="22" fill="#555">This is to certify that</text>
    <text x="561" y="320" font-size="46" font-style="italic">{{x .Name}}</text>
    <text x="561" y="390" font-size="22" fill="#555">{{x .Reason}}</text>
    <text x="561" y="450" font-size="32">{{x .Title}}</text>
    <text x="561" y="500" font-size="22" fill="#555">{{x .EventTitle}}</text>
{{- if .Ranking}}
    <text x="561" y="550" font-size="26" fill="#c9a646">{{ordinal .Ranking}} place</text>
{{- end}}
{{- if .Members}}
    <text x="561" y="590" font-size="18" fill="#555">Team members: {{x (join .Members ", ")}}</text>
{{- end}}
    <text x="561" y="660" font-size="20">{{date .Date}}</text>
    <text x="561" y="720" font-size="14" fill="#888">Verification ID: {{x .VerificationID}}</text>
  </g>
</svg>
`))

func ordinal(n *int) string {
	v := *n
	suffix := "th"
	if v%100 < 11 || v%100 > 13 {
		switch v % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", v, suffix)
}

// Render writes d as an SVG document.
func Render(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := svg.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func ForPresentation(c *model.Certificate) Data {
	return Data{
		Heading:        "Certificate of Completion",
		Name:           c.NameOnCertificate,
		Reason:         "has successfully completed the " + c.PresentationType,
		Title:          c.PresentationTitle,
		EventTitle:     c.EventTitle,
		Date:           c.EventEndDate,
		VerificationID: c.VerificationID,
	}
}

func ForCompetition(c *model.CompetitionCertificate) Data {
	return Data{
		Heading:        "Certificate of Participation",
		Name:           c.NameOnCertificate,
		Reason:         "has participated in the competition",
		Title:          c.CompetitionTitle,
		EventTitle:     c.EventTitle,
		Date:           c.EventEndDate,
		Ranking:        c.Ranking,
		Members:        c.TeamMembers,
		VerificationID: c.VerificationID,
	}
}
