package formatter

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

const (
	// MaxYields bounds the yield pools listed in the context.
	MaxYields = 3
	// MaxTopProtocols bounds the ranked protocol lines.
	MaxTopProtocols = 5

	// FallbackContext is returned when no block was rendered.
	FallbackContext = "No specific DeFi data found for the query."

	notAvailable  = "N/A"
	multipleChain = "Multiple"

	// float64 has no fraction digits left at this magnitude
	maxRoundable = 1e15
)

// FormatContext renders the fetched data as plain text for the answer model.
// The output depends only on its inputs. Blocks are rendered in a fixed order:
// requested protocols, then yields, then top protocols.
func FormatContext(_ model.QueryDescriptor, data model.FetchedDataSet) string {
	var b strings.Builder

	for _, entry := range data.ProtocolsData {
		if entry.Record == nil {
			continue
		}
		chain := entry.Record.Chain
		if chain == "" {
			chain = multipleChain
		}
		fmt.Fprintf(&b, "Protocol: %s\n", entry.ID)
		fmt.Fprintf(&b, "TVL: $%s\n", FormatUSD(entry.Record.TVL))
		fmt.Fprintf(&b, "Chain: %s\n\n", chain)
	}

	if len(data.YieldsData) > 0 {
		b.WriteString("Yields Information:\n")
		for _, y := range data.YieldsData[:min(len(data.YieldsData), MaxYields)] {
			fmt.Fprintf(&b, "- Pool: %s\n", y.Pool)
			fmt.Fprintf(&b, "  APY: %.2f%%\n", y.APY)
			fmt.Fprintf(&b, "  Chain: %s\n\n", y.Chain)
		}
	}

	if len(data.TopProtocols) > 0 {
		b.WriteString("Top Protocols by TVL:\n")
		for i, p := range data.TopProtocols[:min(len(data.TopProtocols), MaxTopProtocols)] {
			fmt.Fprintf(&b, "%d. %s: $%s\n", i+1, p.Name, FormatUSD(p.TVL))
		}
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return FallbackContext
	}
	return b.String()
}

// FormatUSD groups digits by thousands and keeps at most three fraction
// digits without trailing zeros. A nil value renders as N/A.
func FormatUSD(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return notAvailable
	}
	rounded := *v
	if math.Abs(rounded) < maxRoundable {
		rounded = math.Round(rounded*1000) / 1000
	}
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return humanize.Commaf(rounded)
}
