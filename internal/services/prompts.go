package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// SystemPrompt is sent with every generation request.
const SystemPrompt = "You must follow the user instructions exactly."

const (
	rfqJSONPlaceholder       = "{{insert_main_rfq_json_here}}"
	extractedTextPlaceholder = "{{insert_extracted_text_from_power_automate_here}}"
)

//go:embed prompts/*.md
var defaultPrompts embed.FS

// Prompts holds the user prompt template of each mode.
type Prompts struct {
	templates map[models.Mode]string
}

// LoadPrompts reads the built-in templates, replacing each with the file
// named in cfg when one is set.
func LoadPrompts(cfg config.Prompts) (*Prompts, error) {
	p := &Prompts{templates: map[models.Mode]string{}}
	sources := map[models.Mode]string{
		models.ModeSummary: cfg.SummaryFile,
		models.ModePricing: cfg.PricingFile,
	}
	for mode, file := range sources {
		var (
			b   []byte
			err error
		)
		if file != "" {
			b, err = os.ReadFile(file)
		} else {
			b, err = defaultPrompts.ReadFile("prompts/" + string(mode) + ".md")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s prompt: %w", mode, err)
		}
		p.templates[mode] = string(b)
	}
	return p, nil
}

func (p *Prompts) Template(mode models.Mode) string { return p.templates[mode] }

// BuildUserPrompt fills a template with the RFQ record and the attachment
// text, then appends the web findings block when there is one.
func BuildUserPrompt(template string, in *models.RFQInput, extracted string, web []models.WebFinding) (string, error) {
	header, err := json.Marshal(in.Header())
	if err != nil {
		return "", fmt.Errorf("failed to marshal rfq header: %w", err)
	}
	out := strings.ReplaceAll(template, rfqJSONPlaceholder, string(header))
	out = strings.ReplaceAll(out, extractedTextPlaceholder, extracted)

	if len(web) > 0 {
		lines := make([]string, 0, len(web))
		for _, w := range web {
			lines = append(lines, fmt.Sprintf("- %s %s\n%s", w.Title, w.URL, w.Snippet))
		}
		out += "\n\n[WEB_FINDINGS]\n" + strings.Join(lines, "\n")
	}
	return out, nil
}

// SearchQuery is the single web query issued before generation.
func SearchQuery(mode models.Mode, in *models.RFQInput) string {
	details := in.FirstProduct().Details
	switch mode {
	case models.ModePricing:
		return fmt.Sprintf("Wholesale unit pricing India for: %s | %s | %s", in.Title, in.Standard, details)
	default:
		return fmt.Sprintf("India manufacturing cost proxy pricing for: %s | %s | %s", in.Title, in.Standard, details)
	}
}
