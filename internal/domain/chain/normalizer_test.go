package chain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
}

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(DefaultParams())
	n.now = fixedNow
	return n
}

func rawContract(strike, volume, oi, mark float64, expiry string) RawContract {
	return RawContract{
		StrikePrice:    FlexFloat(strike),
		TotalVolume:    FlexFloat(volume),
		OpenInterest:   FlexFloat(oi),
		Mark:           FlexFloat(mark),
		Bid:            FlexFloat(mark - 0.05),
		Ask:            FlexFloat(mark + 0.05),
		Volatility:     FlexFloat(30),
		ExpirationDate: json.RawMessage(`"` + expiry + `"`),
	}
}

func TestNormalize_FlattensBothMaps(t *testing.T) {
	raw := &RawChain{
		Symbol:     "SPY",
		Underlying: Underlying{Last: 500},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"495": {rawContract(495, 1200, 3000, 8.5, "2025-06-20")},
				"505": {rawContract(505, 800, 2000, 4.2, "2025-06-20")},
			},
		},
		PutExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"495": {rawContract(495, 600, 1500, 3.1, "2025-06-20")},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 3)

	calls := 0
	puts := 0
	for _, c := range contracts {
		switch c.Type {
		case Call:
			calls++
		case Put:
			puts++
		}
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, puts)
}

func TestNormalize_DerivedFields(t *testing.T) {
	raw := &RawChain{
		Symbol:     "SPY",
		Underlying: Underlying{Last: 500},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"495": {rawContract(495, 1000, 2000, 8.5, "2025-06-20")},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	c := contracts[0]

	assert.InDelta(t, 0.5, c.VOIRatio, 1e-9)
	assert.InDelta(t, 1000*8.5*100, c.Premium, 1e-9)
	assert.InDelta(t, 5.0, c.Moneyness, 1e-9)
	assert.InDelta(t, 0.30, c.IV, 1e-9)
	assert.Equal(t, 18, c.DTE)
	assert.Equal(t, BucketITM, c.Bucket)
	assert.Equal(t, FlowNeutral, c.Flow)
}

func TestNormalize_ZeroOpenInterest(t *testing.T) {
	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"100": {rawContract(100, 500, 0, 1.0, "2025-06-20")},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	assert.Equal(t, 0.0, contracts[0].VOIRatio)
	assert.Equal(t, FlowBullish, contracts[0].Flow)
}

func TestNormalize_MoneynessSignFlippedForPuts(t *testing.T) {
	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		PutExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"90": {rawContract(90, 100, 500, 0.5, "2025-06-20")},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	// underlying 100 strike 90: calls would be +10, puts flip to -10
	assert.InDelta(t, -10.0, contracts[0].Moneyness, 1e-9)
	assert.Equal(t, BucketOTM, contracts[0].Bucket)
}

func TestNormalize_BucketBands(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name       string
		underlying float64
		moneyness  float64
		want       MoneynessBucket
	}{
		{"deep out of band", 100, 10, BucketOTM},
		{"inside tight band", 100, 1, BucketITM},
		{"between bands", 100, 3, BucketATM},
		{"zero underlying", 0, 5, BucketATM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.bucket(tt.moneyness, tt.underlying))
		})
	}
}

func TestNormalize_UnusualScoreValues(t *testing.T) {
	quiet := rawContract(100, 10, 5000, 1.0, "2025-12-19")

	hot := rawContract(100, 9000, 100, 5.0, "2025-06-06") // V/OI 90, near-term
	hot.Volatility = FlexFloat(80)                        // 80% IV

	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-12-19:200": {
				"100": {quiet, quiet, quiet, quiet},
			},
			"2025-06-06:4": {
				"100": {hot},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 5)

	for _, c := range contracts {
		assert.Contains(t, []int{0, 25, 50, 75, 100}, c.UnusualScore)
		if c.Volume == 9000 {
			// all four triggers fire
			assert.Equal(t, 100, c.UnusualScore)
		}
	}
}

func TestNormalize_SparseBatchVolumeTrigger(t *testing.T) {
	// A batch where most contracts never traded has median volume 0; the
	// volume trigger must still fire for the one active contract.
	idle := rawContract(100, 0, 100, 0, "2025-12-19")
	active := rawContract(100, 10, 100, 0, "2025-12-19")

	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-12-19:200": {
				"100": {idle, idle, idle, active},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 4)

	for _, c := range contracts {
		if c.Volume == 10 {
			assert.Equal(t, 25, c.UnusualScore)
		} else {
			assert.Equal(t, 0, c.UnusualScore)
		}
	}
}

func TestNormalize_DateFallback(t *testing.T) {
	rc := rawContract(100, 10, 20, 1.0, "")
	rc.ExpirationDate = json.RawMessage(`"not-a-date"`)

	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"garbage-key": {
				"100": {rc},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	assert.Equal(t, 30, contracts[0].DTE)
}

func TestNormalize_EpochMillisDate(t *testing.T) {
	rc := rawContract(100, 10, 20, 1.0, "")
	expiry := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	rc.ExpirationDate = json.RawMessage(`1750377600000`) // 2025-06-20 in millis

	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {
				"100": {rc},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	assert.Equal(t, expiry, contracts[0].Expiry)
}

func TestNormalize_ExpiredContractClampedToZeroDTE(t *testing.T) {
	raw := &RawChain{
		Underlying: Underlying{Last: 100},
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-05-16:0": {
				"100": {rawContract(100, 10, 20, 1.0, "2025-05-16")},
			},
		},
	}

	contracts := newTestNormalizer().Normalize(raw)
	require.Len(t, contracts, 1)
	assert.Equal(t, 0, contracts[0].DTE)
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Empty(t, newTestNormalizer().Normalize(nil))
	assert.Empty(t, newTestNormalizer().Normalize(&RawChain{}))
}

func TestFlexFloat_Coercion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"number", `12.5`, 12.5},
		{"quoted number", `"12.5"`, 12.5},
		{"null", `null`, 0},
		{"garbage", `"abc"`, 0},
		{"empty string", `""`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f.Float64())
		})
	}
}

func TestRawChain_Aggregates(t *testing.T) {
	raw := &RawChain{
		CallExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {"100": {rawContract(100, 300, 10, 1, "2025-06-20")}},
			"2025-07-18:46": {"100": {rawContract(100, 200, 10, 1, "2025-07-18")}},
		},
		PutExpDateMap: map[string]map[string][]RawContract{
			"2025-06-20:18": {"95": {rawContract(95, 100, 10, 1, "2025-06-20")}},
		},
	}

	assert.Equal(t, int64(600), raw.TotalVolume())
	assert.Equal(t, 3, raw.ContractCount())
	assert.Equal(t, 2, raw.Expirations())
	assert.False(t, raw.IsEmpty())
	assert.True(t, (&RawChain{}).IsEmpty())
}
