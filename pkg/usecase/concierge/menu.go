package concierge

import (
	"fmt"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/model"
)

const (
	msgMenuUnavailable = "Menu information is currently unavailable."
	msgMenuNoMatch     = "That item is not available in our menu."
)

// formatMenu renders a tabular menu listing filtered by the query terms. A
// query containing "menu" lists everything; otherwise only rows whose item
// name or type appears in the query are shown.
func formatMenu(menu []*model.MenuItem, propertyName, query string) string {
	if len(menu) == 0 {
		return msgMenuUnavailable
	}

	q := strings.ToLower(query)
	var rows []*model.MenuItem
	for _, item := range menu {
		name := strings.ToLower(item.Name)
		typ := strings.ToLower(item.Type)
		if strings.Contains(q, "menu") ||
			(name != "" && strings.Contains(q, name)) ||
			(typ != "" && strings.Contains(q, typ)) {
			rows = append(rows, item)
		}
	}

	if len(rows) == 0 {
		return msgMenuNoMatch
	}

	var sb strings.Builder
	sb.WriteString(strings.ToUpper(propertyName) + " - MENU\n\n")
	sb.WriteString(fmt.Sprintf("%-8s | %-12s | %-20s | %-8s | %s\n",
		"Item ID", "Type", "Item", "Price", "Description"))
	sb.WriteString(strings.Repeat("-", 70) + "\n")

	for _, item := range rows {
		price := ""
		if item.Price > 0 {
			price = formatAmount(item.Price)
		}
		sb.WriteString(fmt.Sprintf("%-8s | %-12s | %-20s | %-8s | %s\n",
			item.ID, item.Type, item.Name, price, item.Description))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatAmount renders a price without trailing zeros: 50 not 50.000000.
func formatAmount(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
