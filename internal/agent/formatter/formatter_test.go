package formatter

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

func ptr(v float64) *float64 { return &v }

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "N/A"},
		{ptr(0), "0"},
		{ptr(999), "999"},
		{ptr(1000), "1,000"},
		{ptr(1234567.891), "1,234,567.891"},
		{ptr(1234.5), "1,234.5"},
		{ptr(12.3456), "12.346"},
		{ptr(-0.0001), "0"},
		{ptr(30000000000), "30,000,000,000"},
		{ptr(1e15), "1,000,000,000,000,000"},
	}
	for _, tt := range tests {
		got := FormatUSD(tt.in)
		if tt.in == nil {
			assert.Equal(t, tt.want, got)
			continue
		}
		assert.Equal(t, tt.want, got, "input %v", *tt.in)
	}
}

func TestFormatUSDHugeValues(t *testing.T) {
	for _, v := range []float64{1e306, -1e306, math.MaxFloat64} {
		got := FormatUSD(&v)
		assert.NotContains(t, got, "Inf", "input %v", v)
		assert.True(t, strings.HasSuffix(got, ",000"), "input %v: %s", v, got)
	}
}

func TestFormatContextFallback(t *testing.T) {
	assert.Equal(t, FallbackContext, FormatContext(model.DefaultQueryDescriptor(), model.FetchedDataSet{}))

	absent := model.FetchedDataSet{ChainsData: []model.ChainRecord{{Name: "Ethereum"}}}
	absent.SetProtocol("aave", nil)
	assert.Equal(t, FallbackContext, FormatContext(model.DefaultQueryDescriptor(), absent))
}

func TestFormatContextProtocolBlock(t *testing.T) {
	var data model.FetchedDataSet
	data.SetProtocol("aave", &model.ProtocolRecord{Name: "Aave", TVL: ptr(1234567.891), Chain: "Ethereum"})
	data.SetProtocol("missing", nil)
	data.SetProtocol("compound", &model.ProtocolRecord{Name: "Compound"})

	got := FormatContext(model.QueryDescriptor{Intent: model.IntentTVLCheck}, data)
	assert.Equal(t,
		"Protocol: aave\nTVL: $1,234,567.891\nChain: Ethereum\n\n"+
			"Protocol: compound\nTVL: $N/A\nChain: Multiple\n\n",
		got)
}

func TestFormatContextCapsYields(t *testing.T) {
	data := model.FetchedDataSet{}
	for i := 0; i < 6; i++ {
		data.YieldsData = append(data.YieldsData, model.YieldRecord{Pool: fmt.Sprintf("pool-%d", i), APY: 3.14159, Chain: "Ethereum"})
	}

	got := FormatContext(model.QueryDescriptor{}, data)
	assert.Equal(t,
		"Yields Information:\n"+
			"- Pool: pool-0\n  APY: 3.14%\n  Chain: Ethereum\n\n"+
			"- Pool: pool-1\n  APY: 3.14%\n  Chain: Ethereum\n\n"+
			"- Pool: pool-2\n  APY: 3.14%\n  Chain: Ethereum\n\n",
		got)
}

func TestFormatContextCapsTopProtocols(t *testing.T) {
	data := model.FetchedDataSet{}
	for i := 0; i < 7; i++ {
		data.TopProtocols = append(data.TopProtocols, model.ProtocolRecord{Name: fmt.Sprintf("P%d", i), TVL: ptr(float64(1000 * (i + 1)))})
	}
	data.TopProtocols[1].TVL = nil

	got := FormatContext(model.QueryDescriptor{}, data)
	assert.Equal(t,
		"Top Protocols by TVL:\n"+
			"1. P0: $1,000\n"+
			"2. P1: $N/A\n"+
			"3. P2: $3,000\n"+
			"4. P3: $4,000\n"+
			"5. P4: $5,000\n\n",
		got)
}

func TestFormatContextOrderAndPurity(t *testing.T) {
	data := model.FetchedDataSet{
		TopProtocols: []model.ProtocolRecord{{Name: "Lido", TVL: ptr(2)}},
		YieldsData:   []model.YieldRecord{{Pool: "p", APY: 0, Chain: "Base"}},
		ChainsData:   []model.ChainRecord{{Name: "Ethereum"}},
	}
	data.SetProtocol("aave", &model.ProtocolRecord{TVL: ptr(1), Chain: "Ethereum"})
	d := model.QueryDescriptor{Intent: model.IntentYieldInfo, Protocols: []string{"aave"}}

	want := "Protocol: aave\nTVL: $1\nChain: Ethereum\n\n" +
		"Yields Information:\n- Pool: p\n  APY: 0.00%\n  Chain: Base\n\n" +
		"Top Protocols by TVL:\n1. Lido: $2\n\n"

	first := FormatContext(d, data)
	assert.Equal(t, want, first)
	assert.Equal(t, first, FormatContext(d, data))
	assert.Len(t, data.YieldsData, 1)
}
