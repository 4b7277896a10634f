package model

import (
	"strconv"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/utils/textnorm"
)

// KnowledgeEntry is one question/answer record usable as retrieval context.
// Entries are immutable per refresh cycle; the retriever rebuilds the whole
// set from the knowledge sheet on a timer.
type KnowledgeEntry struct {
	ID         string
	Question   string
	Answer     string
	Status     string
	UsageCount int

	// Derived at refresh time and cached to avoid recomputation per query.
	PageContent  string
	QuestionNorm string
}

// Active reports whether the entry participates in retrieval.
func (x *KnowledgeEntry) Active() bool {
	return strings.EqualFold(strings.TrimSpace(x.Status), "active")
}

// NewKnowledgeEntry builds an entry from a knowledge sheet row, deriving the
// page content and normalized question. Returns nil for rows with an empty
// question or answer.
func NewKnowledgeEntry(row map[string]string) *KnowledgeEntry {
	question := strings.TrimSpace(row["Question"])
	answer := strings.TrimSpace(row["Answer"])
	if question == "" || answer == "" {
		return nil
	}

	usage, _ := strconv.Atoi(strings.TrimSpace(row["Usage Count"]))

	return &KnowledgeEntry{
		ID:           strings.TrimSpace(row["QnA ID"]),
		Question:     question,
		Answer:       answer,
		Status:       row["Status"],
		UsageCount:   usage,
		PageContent:  "Q: " + question + "\nA: " + answer,
		QuestionNorm: textnorm.Normalize(question),
	}
}

// MenuItem is one row of the menu sheet. Complimentary items carry no price
// and are excluded from priced lookups.
type MenuItem struct {
	ID          string
	Type        string
	Name        string
	Price       float64
	Description string
}

// Complimentary reports whether the item is excluded from priced lookups.
func (x *MenuItem) Complimentary() bool {
	return strings.EqualFold(strings.TrimSpace(x.Type), "complimentary")
}

// NewMenuItem builds a menu item from a menu sheet row. Prices arrive as free
// text (currency marks, thousand separators); unparseable prices become 0.
func NewMenuItem(row map[string]string) *MenuItem {
	raw := strings.TrimSpace(row["Price"])
	raw = strings.NewReplacer("₹", "", "$", "", ",", "").Replace(raw)
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		price = 0
	}

	return &MenuItem{
		ID:          strings.TrimSpace(row["Item ID"]),
		Type:        strings.TrimSpace(row["Type"]),
		Name:        strings.TrimSpace(row["Item"]),
		Price:       price,
		Description: strings.TrimSpace(row["Description"]),
	}
}

// Campaign is an active promotion summarized into the prompt.
type Campaign struct {
	Title       string
	Description string
}

// ConductRule is one do/don't pair from the communication rules sheet.
type ConductRule struct {
	Do   string
	Dont string
}
