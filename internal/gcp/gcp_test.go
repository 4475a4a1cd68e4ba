package gcp

import (
	"encoding/base64"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(segs ...[2]int64) *documentaipb.Document_Page {
	anchor := &documentaipb.Document_TextAnchor{}
	for _, s := range segs {
		anchor.TextSegments = append(anchor.TextSegments, &documentaipb.Document_TextAnchor_TextSegment{StartIndex: s[0], EndIndex: s[1]})
	}
	return &documentaipb.Document_Page{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor}}
}

func TestPageTextsSlicesByAnchor(t *testing.T) {
	p1 := "Drawing no. 4411 flange DN50 PN16 material ASTM A105 forged and machined. "
	p2 := "Tolerances per ISO 2768-m. Hydro test at 24 bar. Surface zinc plated 12 µm."
	doc := &documentaipb.Document{
		Text:  p1 + p2,
		Pages: []*documentaipb.Document_Page{page([2]int64{0, int64(len([]rune(p1)))}), page([2]int64{int64(len([]rune(p1))), int64(len([]rune(p1 + p2)))})},
	}

	got := PageTexts(doc)
	require.Len(t, got, 2)
	assert.Equal(t, strings.TrimSpace(p1), got[0])
	assert.Equal(t, p2, got[1])
}

func TestPageTextsFallsBackToWholeText(t *testing.T) {
	doc := &documentaipb.Document{
		Text:  "short anchors but the document text itself is here",
		Pages: []*documentaipb.Document_Page{page([2]int64{0, 5}), page()},
	}
	assert.Equal(t, []string{"short anchors but the document text itself is here"}, PageTexts(doc))
}

func TestPageTextsEmptyDocument(t *testing.T) {
	assert.Nil(t, PageTexts(&documentaipb.Document{Text: "  \n "}))
	assert.Nil(t, PageTexts(nil))
}

func TestPageTextsIgnoresOutOfRangeSegments(t *testing.T) {
	text := strings.Repeat("x", 100)
	doc := &documentaipb.Document{Text: text, Pages: []*documentaipb.Document_Page{page([2]int64{0, 500})}}
	assert.Equal(t, []string{text}, PageTexts(doc))
}

func TestCredentialsFromB64(t *testing.T) {
	opts, err := CredentialsFromB64("", "  ")
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = CredentialsFromB64("", base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account"}`)))
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = CredentialsFromB64("not base64!")
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("```markdown\nOUTPUT 1"), genai.Text("\nprice\n```")}},
	}}}
	assert.Equal(t, "OUTPUT 1\nprice", responseText(resp))
}
