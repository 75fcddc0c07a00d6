package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
)

func TestFormatJobEscapesHTML(t *testing.T) {
	out := formatJob(jobs.JobRecord{
		Title:       "Psychologist <Band 4> & more",
		URL:         "https://example.org/job/1?a=b&c=d",
		Employer:    "Trust & Partners",
		Location:    "London",
		ClosingDate: "14/09/2026",
	})

	require.Contains(t, out, "<b>Psychologist &lt;Band 4&gt; &amp; more</b>")
	require.Contains(t, out, "Employer: Trust &amp; Partners")
	require.Contains(t, out, "<a href='https://example.org/job/1?a=b&c=d'>View Job</a>")
	require.Contains(t, out, "Closing Date: 14th September 2026")
}

func TestFormatBatchConcatenatesUnderHeader(t *testing.T) {
	out := formatBatch([]jobs.JobRecord{
		{Title: "First", URL: "https://example.org/1", ClosingDate: "01/09/2026"},
		{Title: "Second", URL: "https://example.org/2", ClosingDate: "02/09/2026"},
	})

	require.True(t, len(out) > len(batchHeader))
	require.Equal(t, batchHeader, out[:len(batchHeader)])
	require.Contains(t, out, "First")
	require.Contains(t, out, "Second")
}

func TestOrdinalDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"01/09/2026", "1st September 2026"},
		{"02/09/2026", "2nd September 2026"},
		{"03/09/2026", "3rd September 2026"},
		{"04/09/2026", "4th September 2026"},
		{"11/01/2026", "11th January 2026"},
		{"12/01/2026", "12th January 2026"},
		{"13/01/2026", "13th January 2026"},
		{"21/12/2026", "21st December 2026"},
		{"22/12/2026", "22nd December 2026"},
		{"23/12/2026", "23rd December 2026"},
		{"31/10/2026", "31st October 2026"},
		{"garbage", "garbage"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ordinalDate(tc.in), "input %q", tc.in)
	}
}
