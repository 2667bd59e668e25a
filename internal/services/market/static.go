package market

import "github.com/ternarybob/censeo/internal/interfaces"

// staticCompanies is the built-in company universe used when no market data
// provider is configured, and as the fallback when the provider is down.
// Beta and exposure figures are long-run sector baselines, not live quotes.
var staticCompanies = map[string]interfaces.CompanyContext{
	"XOM":   {Ticker: "XOM", Name: "Exxon Mobil", Sector: "Energy", MarketCap: 475e9, Beta: 0.95, SectorExposure: 0.95},
	"CVX":   {Ticker: "CVX", Name: "Chevron", Sector: "Energy", MarketCap: 280e9, Beta: 1.05, SectorExposure: 0.92},
	"NEE":   {Ticker: "NEE", Name: "NextEra Energy", Sector: "Energy", MarketCap: 150e9, Beta: 0.55, SectorExposure: 0.88},
	"GE":    {Ticker: "GE", Name: "General Electric", Sector: "Energy", MarketCap: 180e9, Beta: 1.20, SectorExposure: 0.45},
	"AAPL":  {Ticker: "AAPL", Name: "Apple", Sector: "Technology", MarketCap: 3400e9, Beta: 1.25, SectorExposure: 0.90},
	"MSFT":  {Ticker: "MSFT", Name: "Microsoft", Sector: "Technology", MarketCap: 3100e9, Beta: 0.90, SectorExposure: 0.93},
	"GOOGL": {Ticker: "GOOGL", Name: "Alphabet", Sector: "Technology", MarketCap: 2100e9, Beta: 1.05, SectorExposure: 0.85},
	"AMZN":  {Ticker: "AMZN", Name: "Amazon", Sector: "Retail", MarketCap: 1900e9, Beta: 1.15, SectorExposure: 0.70},
	"META":  {Ticker: "META", Name: "Meta Platforms", Sector: "Media & Entertainment", MarketCap: 1300e9, Beta: 1.20, SectorExposure: 0.97},
	"NVDA":  {Ticker: "NVDA", Name: "NVIDIA", Sector: "Semiconductors", MarketCap: 3200e9, Beta: 1.70, SectorExposure: 0.95},
	"AMD":   {Ticker: "AMD", Name: "Advanced Micro Devices", Sector: "Semiconductors", MarketCap: 230e9, Beta: 1.65, SectorExposure: 0.98},
	"INTC":  {Ticker: "INTC", Name: "Intel", Sector: "Semiconductors", MarketCap: 90e9, Beta: 1.10, SectorExposure: 0.96},
	"TSLA":  {Ticker: "TSLA", Name: "Tesla", Sector: "Automotive", MarketCap: 800e9, Beta: 2.00, SectorExposure: 0.85},
	"F":     {Ticker: "F", Name: "Ford Motor", Sector: "Automotive", MarketCap: 45e9, Beta: 1.45, SectorExposure: 0.95},
	"GM":    {Ticker: "GM", Name: "General Motors", Sector: "Automotive", MarketCap: 55e9, Beta: 1.40, SectorExposure: 0.94},
	"JPM":   {Ticker: "JPM", Name: "JPMorgan Chase", Sector: "Financial Services", MarketCap: 600e9, Beta: 1.10, SectorExposure: 0.96},
	"GS":    {Ticker: "GS", Name: "Goldman Sachs", Sector: "Financial Services", MarketCap: 160e9, Beta: 1.35, SectorExposure: 0.98},
	"BAC":   {Ticker: "BAC", Name: "Bank of America", Sector: "Financial Services", MarketCap: 300e9, Beta: 1.30, SectorExposure: 0.97},
	"JNJ":   {Ticker: "JNJ", Name: "Johnson & Johnson", Sector: "Healthcare", MarketCap: 380e9, Beta: 0.55, SectorExposure: 0.80},
	"UNH":   {Ticker: "UNH", Name: "UnitedHealth", Sector: "Healthcare", MarketCap: 480e9, Beta: 0.70, SectorExposure: 0.99},
	"PFE":   {Ticker: "PFE", Name: "Pfizer", Sector: "Pharmaceuticals", MarketCap: 160e9, Beta: 0.60, SectorExposure: 0.95},
	"MRK":   {Ticker: "MRK", Name: "Merck", Sector: "Pharmaceuticals", MarketCap: 270e9, Beta: 0.40, SectorExposure: 0.94},
	"ABBV":  {Ticker: "ABBV", Name: "AbbVie", Sector: "Pharmaceuticals", MarketCap: 320e9, Beta: 0.60, SectorExposure: 0.96},
	"WMT":   {Ticker: "WMT", Name: "Walmart", Sector: "Retail", MarketCap: 650e9, Beta: 0.50, SectorExposure: 0.98},
	"BA":    {Ticker: "BA", Name: "Boeing", Sector: "Aerospace & Defense", MarketCap: 110e9, Beta: 1.55, SectorExposure: 0.95},
	"LMT":   {Ticker: "LMT", Name: "Lockheed Martin", Sector: "Aerospace & Defense", MarketCap: 120e9, Beta: 0.45, SectorExposure: 0.97},
	"VZ":    {Ticker: "VZ", Name: "Verizon", Sector: "Telecommunications", MarketCap: 170e9, Beta: 0.40, SectorExposure: 0.99},
	"T":     {Ticker: "T", Name: "AT&T", Sector: "Telecommunications", MarketCap: 160e9, Beta: 0.60, SectorExposure: 0.96},
	"DIS":   {Ticker: "DIS", Name: "Walt Disney", Sector: "Media & Entertainment", MarketCap: 170e9, Beta: 1.35, SectorExposure: 0.90},
	"KO":    {Ticker: "KO", Name: "Coca-Cola", Sector: "Food & Beverage", MarketCap: 290e9, Beta: 0.60, SectorExposure: 0.99},
	"PEP":   {Ticker: "PEP", Name: "PepsiCo", Sector: "Food & Beverage", MarketCap: 230e9, Beta: 0.55, SectorExposure: 0.98},
	"CAT":   {Ticker: "CAT", Name: "Caterpillar", Sector: "Manufacturing", MarketCap: 170e9, Beta: 1.15, SectorExposure: 0.90},
	"HON":   {Ticker: "HON", Name: "Honeywell", Sector: "Manufacturing", MarketCap: 135e9, Beta: 1.05, SectorExposure: 0.85},
}
