package concierge

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/model"
)

// extractOrder scans the menu against the message and returns the resolved
// order lines. Quantities come from "<n> <item>" or "<item> x<n>" patterns; a
// bare mention counts as one. Lines keep menu order so repeated extraction
// over the same snapshot is deterministic.
func extractOrder(menu []*model.MenuItem, query string) []model.OrderLine {
	q := strings.ToLower(query)

	var lines []model.OrderLine
	for _, item := range menu {
		name := strings.ToLower(item.Name)
		if name == "" {
			continue
		}

		quantity := matchQuantity(q, name)
		if quantity == 0 && strings.Contains(q, name) {
			quantity = 1
		}
		if quantity == 0 {
			continue
		}

		lines = append(lines, model.OrderLine{
			Item:     item.Name,
			Quantity: quantity,
			Price:    item.Price,
		})
	}
	return lines
}

func matchQuantity(query, itemName string) int {
	patterns := []string{
		`(\d+)\s+` + regexp.QuoteMeta(itemName),
		regexp.QuoteMeta(itemName) + `\s*x\s*(\d+)`,
	}
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(query); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}
