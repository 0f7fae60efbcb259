package retrieval

import (
	"context"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// TopProtocolsLimit bounds how many top protocols are kept for the context.
const TopProtocolsLimit = 5

// MarketData is the read side of the market data provider. Implementations
// never return errors: failures surface as nil or empty results.
type MarketData interface {
	GetProtocol(ctx context.Context, slug string) *model.ProtocolRecord
	ListProtocols(ctx context.Context) []model.ProtocolRecord
	ListYields(ctx context.Context) []model.YieldRecord
	ListChains(ctx context.Context) []model.ChainRecord
	GetProtocolYields(ctx context.Context, slug string) []model.YieldRecord
}

// Orchestrator decides which market data calls a descriptor needs and assembles the results.
type Orchestrator struct {
	market MarketData
}

func NewOrchestrator(market MarketData) *Orchestrator {
	return &Orchestrator{market: market}
}

// Fetch runs the retrieval branches in a fixed order. Branches are not
// exclusive, calls run sequentially and one failed call never aborts the others.
func (o *Orchestrator) Fetch(ctx context.Context, d model.QueryDescriptor) model.FetchedDataSet {
	data := model.FetchedDataSet{
		ProtocolsData: []model.ProtocolEntry{},
		TopProtocols:  []model.ProtocolRecord{},
		ChainsData:    []model.ChainRecord{},
		YieldsData:    []model.YieldRecord{},
	}

	wantsYields := d.WantsYields()
	for _, protocol := range d.Protocols {
		data.SetProtocol(protocol, o.market.GetProtocol(ctx, protocol))

		if wantsYields {
			// overwrite, so the last protocol in list order wins
			data.YieldsData = nonNilYields(o.market.GetProtocolYields(ctx, protocol))
		}
	}

	if d.Intent == model.IntentGeneralQuestion || len(d.Protocols) == 0 {
		top := o.market.ListProtocols(ctx)
		if len(top) > TopProtocolsLimit {
			top = top[:TopProtocolsLimit]
		}
		if top != nil {
			data.TopProtocols = top
		}
	}

	if len(d.Chains) > 0 || d.Intent == model.IntentChainInfo {
		if chains := o.market.ListChains(ctx); chains != nil {
			data.ChainsData = chains
		}
	}

	logx.Debug().
		Str("intent", string(d.Intent)).
		Int("protocols", len(data.ProtocolsData)).
		Int("top_protocols", len(data.TopProtocols)).
		Int("chains", len(data.ChainsData)).
		Int("yields", len(data.YieldsData)).
		Msg("Market data fetched")

	return data
}

func nonNilYields(in []model.YieldRecord) []model.YieldRecord {
	if in == nil {
		return []model.YieldRecord{}
	}
	return in
}
