package extract

import (
	"regexp"
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// sheetRef matches Sheet!A1, 'Sheet Name'!$B$7 and similar references.
var sheetRef = regexp.MustCompile(`'?([A-Za-z0-9_ .\-]+)'?!\$?([A-Z]{1,3})\$?(\d+)`)

// FormulaRefs returns the cross-sheet targets referenced by a formula.
func FormulaRefs(formula string) []string {
	var refs []string
	for _, m := range sheetRef.FindAllStringSubmatch(formula, -1) {
		sheet := strings.TrimSpace(m[1])
		if sheet == "" {
			continue
		}
		refs = append(refs, sheet+"!"+m[2]+m[3])
	}
	return refs
}

type formulaCollector struct {
	limit int
	links []models.FormulaLink
}

// add records links from one cell and reports whether the cap is reached.
func (c *formulaCollector) add(fromCell, formula string) bool {
	for _, to := range FormulaRefs(formula) {
		if len(c.links) >= c.limit {
			return true
		}
		c.links = append(c.links, models.FormulaLink{FromCell: fromCell, To: to})
	}
	return len(c.links) >= c.limit
}
