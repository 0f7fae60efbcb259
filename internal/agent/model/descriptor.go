package model

import (
	"slices"
	"strings"
)

// Intent is the classified purpose of a user's query.
type Intent string

const (
	IntentProtocolInfo    Intent = "protocol_info"
	IntentTVLCheck        Intent = "tvl_check"
	IntentYieldInfo       Intent = "yield_info"
	IntentComparison      Intent = "comparison"
	IntentChainInfo       Intent = "chain_info"
	IntentGeneralQuestion Intent = "general_question"
)

// Intents lists every intent the extractor may produce.
var Intents = []Intent{
	IntentProtocolInfo,
	IntentTVLCheck,
	IntentYieldInfo,
	IntentComparison,
	IntentChainInfo,
	IntentGeneralQuestion,
}

// Valid reports whether i is one of the enumerated intents.
func (i Intent) Valid() bool {
	return slices.Contains(Intents, i)
}

// Metric keywords that trigger a yield fetch for each named protocol.
const (
	MetricYield = "yield"
	MetricAPY   = "apy"
	MetricTVL   = "tvl"
)

// QueryDescriptor is the structured reading of one user query.
// Entity lists keep the extractor's order and may contain duplicates.
type QueryDescriptor struct {
	Intent    Intent   `json:"intent" jsonschema:"enum=protocol_info,enum=tvl_check,enum=yield_info,enum=comparison,enum=chain_info,enum=general_question"`
	Protocols []string `json:"protocols"`
	Chains    []string `json:"chains"`
	Metrics   []string `json:"metrics"`
}

// DefaultQueryDescriptor is used whenever extraction output cannot be trusted.
func DefaultQueryDescriptor() QueryDescriptor {
	return QueryDescriptor{
		Intent:    IntentGeneralQuestion,
		Protocols: []string{},
		Chains:    []string{},
		Metrics:   []string{},
	}
}

// HasMetric reports whether any of the given metric keywords was extracted.
func (d QueryDescriptor) HasMetric(metrics ...string) bool {
	for _, m := range d.Metrics {
		if slices.Contains(metrics, m) {
			return true
		}
	}
	return false
}

// WantsYields reports whether the query asks for yield or APY figures.
func (d QueryDescriptor) WantsYields() bool {
	return d.HasMetric(MetricYield, MetricAPY)
}

// Normalize trims and lowercases every entity and replaces nil lists with empty ones.
func (d QueryDescriptor) Normalize() QueryDescriptor {
	return QueryDescriptor{
		Intent:    d.Intent,
		Protocols: normalizeEntities(d.Protocols),
		Chains:    normalizeEntities(d.Chains),
		Metrics:   normalizeEntities(d.Metrics),
	}
}

func normalizeEntities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
