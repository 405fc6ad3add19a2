package history

import "time"

// Chart line colors per asset, matching the dashboard frontend palette.
var assetColors = map[string]string{
	"bitcoin":  "rgba(255, 193, 7, 1)",
	"ethereum": "rgba(60, 60, 60, 1)",
	"dogecoin": "rgba(255, 193, 7, 1)",
}

// defaultColor is used for assets without a dedicated palette entry.
const defaultColor = "rgba(59,130,246,1)"

// Color returns the chart color for an asset.
func Color(asset string) string {
	if c, ok := assetColors[asset]; ok {
		return c
	}
	return defaultColor
}

// Reference price series used to seed the in-memory store in degraded mode.
var referencePrices = map[string][]float64{
	"bitcoin":  {29500, 31000, 30500, 30200, 31500, 32000, 32500},
	"ethereum": {1800, 1850, 1810, 1790, 1880, 1900, 1950},
	"dogecoin": {0.07, 0.072, 0.069, 0.070, 0.075, 0.078, 0.08},
}

// referenceSeries materialises the reference prices as records spaced one day
// apart, ending now.
func referenceSeries() map[string][]Record {
	now := time.Now().UTC()
	series := make(map[string][]Record, len(referencePrices))
	for asset, prices := range referencePrices {
		records := make([]Record, 0, len(prices))
		for i, price := range prices {
			ts := now.Add(-time.Duration(len(prices)-1-i) * 24 * time.Hour)
			records = append(records, Record{
				Asset:     asset,
				Timestamp: ts.Unix(),
				Price:     price,
			})
		}
		series[asset] = records
	}
	return series
}
