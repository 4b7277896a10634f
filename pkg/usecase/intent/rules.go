package intent

import (
	_ "embed"
	"os"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesRaw []byte

type ruleFile struct {
	Rules []struct {
		Intent   string   `yaml:"intent"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"rules"`
	Default string `yaml:"default"`
}

type rule struct {
	intent   model.Intent
	keywords []string
}

// RuleTable is the ordered keyword fallback used when the LLM classifier
// fails or returns UNKNOWN. Rules are checked in file order and the first
// matching keyword decides the category.
type RuleTable struct {
	rules      []rule
	defaultTag model.Intent
}

// DefaultRules loads the embedded rule table.
func DefaultRules() (*RuleTable, error) {
	return parseRules(defaultRulesRaw)
}

// LoadRules loads a rule table from a YAML file, letting a property override
// the embedded keywords.
func LoadRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read rules file", goerr.V("path", path))
	}
	table, err := parseRules(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse rules file", goerr.V("path", path))
	}
	return table, nil
}

func parseRules(data []byte) (*RuleTable, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal rules")
	}
	if len(file.Rules) == 0 {
		return nil, goerr.New("rule table has no rules")
	}

	table := &RuleTable{
		defaultTag: model.IntentQnA,
	}
	if file.Default != "" {
		tag := model.Intent(file.Default)
		if err := tag.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid default intent")
		}
		table.defaultTag = tag
	}

	for _, r := range file.Rules {
		tag := model.Intent(r.Intent)
		if err := tag.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid rule intent")
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		table.rules = append(table.rules, rule{intent: tag, keywords: keywords})
	}

	return table, nil
}

// Match returns the first rule whose keyword appears in the query, or the
// default category. Matching is a case-insensitive substring check on the raw
// query, so multi-word keywords like "ac not working" work as phrases.
func (t *RuleTable) Match(query string) model.Intent {
	q := strings.ToLower(query)
	for _, r := range t.rules {
		for _, k := range r.keywords {
			if strings.Contains(q, k) {
				return r.intent
			}
		}
	}
	return t.defaultTag
}
