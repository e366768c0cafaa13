package api

// Candle status values reported in CandlesResponse.Status.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// Resolutions accepted by GET /stock/candle.
var Resolutions = []string{"1", "5", "15", "30", "60", "D", "W", "M"}

// ValidResolution reports whether res is a supported candle resolution.
func ValidResolution(res string) bool {
	for _, r := range Resolutions {
		if r == res {
			return true
		}
	}
	return false
}

// CandlesResponse from GET /stock/candle. Arrays are parallel, one entry per bar.
type CandlesResponse struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Timestamp []int64   `json:"t"`
	Volume    []float64 `json:"v"`
	Status    string    `json:"s"`
}

// QuoteResponse from GET /quote.
type QuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// SymbolInfo is one listing from GET /stock/symbol.
type SymbolInfo struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	MIC           string `json:"mic"`
	FIGI          string `json:"figi"`
}

// Country is one entry from GET /country.
type Country struct {
	Country      string `json:"country"`
	Code2        string `json:"code2"`
	Code3        string `json:"code3"`
	CodeNo       string `json:"codeNo"`
	Currency     string `json:"currency"`
	CurrencyCode string `json:"currencyCode"`
	Region       string `json:"region"`
	SubRegion    string `json:"subRegion"`
}
