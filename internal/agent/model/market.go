package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolRecord is DefiLlama protocol metadata.
type ProtocolRecord struct {
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	TVL              *float64           `json:"tvl,omitempty"`
	Chain            string             `json:"chain,omitempty"`
	CurrentChainTvls map[string]float64 `json:"currentChainTvls,omitempty"`
	Chains           []string           `json:"chains,omitempty"`
	Category         string             `json:"category,omitempty"`
	URL              string             `json:"url,omitempty"`
}

type tvlPoint struct {
	Date              int64   `json:"date"`
	TotalLiquidityUSD float64 `json:"totalLiquidityUSD"`
}

// UnmarshalJSON accepts tvl as a number, null, or the historical
// [{date, totalLiquidityUSD}] series returned by /protocol/{slug}.
// For a series the latest point is kept.
func (p *ProtocolRecord) UnmarshalJSON(data []byte) error {
	type alias ProtocolRecord
	aux := struct {
		*alias
		TVL              json.RawMessage            `json:"tvl"`
		CurrentChainTvls map[string]json.RawMessage `json:"currentChainTvls"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.TVL = nil
	raw := bytes.TrimSpace(aux.TVL)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var series []tvlPoint
		if err := json.Unmarshal(raw, &series); err != nil {
			return fmt.Errorf("decode tvl series: %w", err)
		}
		if len(series) > 0 {
			v := series[len(series)-1].TotalLiquidityUSD
			p.TVL = &v
		}
	default:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode tvl: %w", err)
		}
		p.TVL = &v
	}

	// Per-chain values are numbers on /protocols; non-numeric entries are skipped.
	p.CurrentChainTvls = nil
	if len(aux.CurrentChainTvls) > 0 {
		p.CurrentChainTvls = make(map[string]float64, len(aux.CurrentChainTvls))
		for chain, v := range aux.CurrentChainTvls {
			var f float64
			if err := json.Unmarshal(v, &f); err == nil {
				p.CurrentChainTvls[chain] = f
			}
		}
	}
	return nil
}

// YieldRecord is a single DefiLlama yield pool. A null apy decodes as 0.
type YieldRecord struct {
	Project  string  `json:"project"`
	Chain    string  `json:"chain"`
	Pool     string  `json:"pool"`
	APY      float64 `json:"apy"`
	TVLUsd   float64 `json:"tvlUsd"`
	PoolMeta *string `json:"poolMeta,omitempty"`
}

// ChainRecord is a DefiLlama chain summary.
type ChainRecord struct {
	Name        string      `json:"name"`
	TVL         float64     `json:"tvl"`
	TokenSymbol *string     `json:"tokenSymbol,omitempty"`
	CmcID       *FlexibleID `json:"cmcId,omitempty"`
	ChainID     *FlexibleID `json:"chainId,omitempty"`
}

// FlexibleID holds an identifier that DefiLlama sends either as a string or a number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// ProtocolEntry pairs a requested protocol identifier with its record.
// Record is nil when the fetch failed.
type ProtocolEntry struct {
	ID     string
	Record *ProtocolRecord
}

// FetchedDataSet is everything retrieved for one query turn.
type FetchedDataSet struct {
	ProtocolsData []ProtocolEntry
	TopProtocols  []ProtocolRecord
	ChainsData    []ChainRecord
	YieldsData    []YieldRecord
}

// SetProtocol stores rec under id. A repeated id replaces the earlier value
// but keeps its original position.
func (f *FetchedDataSet) SetProtocol(id string, rec *ProtocolRecord) {
	for i := range f.ProtocolsData {
		if f.ProtocolsData[i].ID == id {
			f.ProtocolsData[i].Record = rec
			return
		}
	}
	f.ProtocolsData = append(f.ProtocolsData, ProtocolEntry{ID: id, Record: rec})
}
