// Package partition owns one similarity index per category bucket, built from
// labeled catalog data so sparse categories keep representation at query time.
package partition

import "strings"

// Rule maps caption keywords to a partition key. Rules are evaluated in
// order; the first rule with a matching keyword wins.
type Rule struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
}

// Classifier assigns every raw catalog label to exactly one partition key.
// Matching is case-insensitive substring containment with a mandatory default
// bucket, so classification is total: no label is ever left unassigned.
type Classifier struct {
	rules      []Rule
	defaultKey string
}

// NewClassifier creates a classifier from an ordered rule table and a default
// key for labels no rule matches.
func NewClassifier(rules []Rule, defaultKey string) *Classifier {
	if defaultKey == "" {
		defaultKey = DefaultKey
	}
	return &Classifier{rules: rules, defaultKey: defaultKey}
}

// DefaultKey is the bucket that absorbs unmatched labels.
const DefaultKey = "others"

// DefaultRules returns the built-in rule table: footwear before apparel, so a
// caption mentioning both (e.g. "apparel-style sport shoes") lands in footwear.
func DefaultRules() []Rule {
	return []Rule{
		{Key: "footwear", Keywords: []string{"footwear", "shoes"}},
		{Key: "apparel", Keywords: []string{"apparel"}},
	}
}

// Classify returns the partition key for a raw label.
func (c *Classifier) Classify(label string) string {
	lower := strings.ToLower(label)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Key
			}
		}
	}
	return c.defaultKey
}

// Keys returns the declared partition keys in rule order, default key last.
func (c *Classifier) Keys() []string {
	keys := make([]string, 0, len(c.rules)+1)
	seen := make(map[string]bool, len(c.rules)+1)
	for _, rule := range c.rules {
		if !seen[rule.Key] {
			keys = append(keys, rule.Key)
			seen[rule.Key] = true
		}
	}
	if !seen[c.defaultKey] {
		keys = append(keys, c.defaultKey)
	}
	return keys
}
