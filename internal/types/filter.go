package types

// FilterType determines how a rule's pattern is matched against text
type FilterType string

const (
	FilterKeyword   FilterType = "keyword"
	FilterRegex     FilterType = "regex"
	FilterSemantic  FilterType = "semantic"
	FilterSentiment FilterType = "sentiment"
)

// FilterAction determines what happens when a rule matches
type FilterAction string

const (
	ActionBlock   FilterAction = "block"   // short-circuit, empty output
	ActionFlag    FilterAction = "flag"    // mark flagged, keep processing
	ActionReplace FilterAction = "replace" // substitute matches, keep processing
	ActionLog     FilterAction = "log"     // log only, text untouched
)

// FilterRule is one screening rule. Rules evaluate in declaration order.
type FilterRule struct {
	Type        FilterType   `json:"type" dynamodbav:"Type"`
	Pattern     string       `json:"pattern" dynamodbav:"Pattern"`
	Action      FilterAction `json:"action" dynamodbav:"Action"`
	Severity    string       `json:"severity,omitempty" dynamodbav:"Severity"`
	Replacement string       `json:"replacement,omitempty" dynamodbav:"Replacement"`
}
