package market

import "time"

// TokenMarketData is the normalized market snapshot for one token, assembled
// from the pair with the deepest liquidity. Pointer fields are absent when the
// upstream pair does not report them; score checks treat absence as zero.
type TokenMarketData struct {
	Name           string
	Symbol         string
	PriceUSD       float64
	PriceChange24h float64
	Volume24h      float64
	MarketCap      *float64
	LiquidityUSD   *float64
	ImageURL       string
	PairCreatedAt  *time.Time
	Buys24h        int
	Sells24h       int
}

// dexPairsResponse mirrors the DexScreener token endpoint payload
type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap     *float64 `json:"marketCap"`
	FDV           *float64 `json:"fdv"`
	PairCreatedAt int64    `json:"pairCreatedAt"` // unix millis, 0 when unknown
	Info          *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

// coingeckoPriceResponse mirrors the CoinGecko simple price payload
type coingeckoPriceResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}
