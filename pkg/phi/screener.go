package phi

import "regexp"

// Screener masks PHI patterns in free-text fields (report titles, update
// notes) before they are persisted or summarized into the ledger.

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Screener struct {
	rules []compiledRule
}

func NewScreener(cfg RulesConfig) (*Screener, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Screener{rules: compiled}, nil
}

type Finding struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// Detect reports which rule types match the text and how often.
func (s *Screener) Detect(text string) []Finding {
	if s == nil {
		return nil
	}

	var findings []Finding
	for _, rule := range s.rules {
		matches := rule.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		findings = append(findings, Finding{
			Type:     rule.rule.Type,
			Severity: rule.rule.Severity,
			Count:    len(matches),
		})
	}
	return findings
}

// Mask replaces every match with the rule's mask string.
func (s *Screener) Mask(text string) string {
	if s == nil {
		return text
	}

	masked := text
	for _, rule := range s.rules {
		masked = rule.re.ReplaceAllString(masked, rule.rule.Mask)
	}
	return masked
}
