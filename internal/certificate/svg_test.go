package certificate

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
)

func TestRenderEscapesText(t *testing.T) {
	out, err := Render(ForPresentation(&model.Certificate{
		NameOnCertificate: `Sara <Ahmadi> & "co"`,
		PresentationTitle: "Go & Postgres",
		PresentationType:  model.PresentationWorkshop,
		EventTitle:        "Spring Week",
		EventEndDate:      time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC),
		VerificationID:    "3f1c",
	}))
	require.NoError(t, err)

	body := string(out)
	assert.Contains(t, body, "Sara &lt;Ahmadi&gt; &amp; &#34;co&#34;")
	assert.Contains(t, body, "Go &amp; Postgres")
	assert.Contains(t, body, "May 3, 2026")
	assert.NotContains(t, body, "place")

	var doc struct {
		XMLName xml.Name `xml:"svg"`
	}
	assert.NoError(t, xml.Unmarshal(out, &doc))
}

func TestRenderCompetitionRankingAndMembers(t *testing.T) {
	rank := 2
	out, err := Render(ForCompetition(&model.CompetitionCertificate{
		NameOnCertificate: "Gophers",
		CompetitionTitle:  "Hackathon",
		Ranking:           &rank,
		TeamMembers:       []string{"Ali", "Sara"},
		EventEndDate:      time.Now(),
	}))
	require.NoError(t, err)
	assert.Contains(t, string(out), "2nd place")
	assert.Contains(t, string(out), "Team members: Ali, Sara")
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 112: "112th"} {
		v := n
		assert.Equal(t, want, ordinal(&v))
	}
}
