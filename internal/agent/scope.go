package agent

import "strings"

// stockKeywords gates which utterances reach the model at all. Matching is
// case-insensitive substring; legitimate questions that use none of these
// words are rejected, an accepted cost of keeping the gate trivial.
var stockKeywords = []string{
	"stock", "stocks", "share", "shares", "ticker", "symbol", "price", "volume",
	"market", "trading", "equity", "equities", "nasdaq", "nyse", "dow", "s&p",
	"portfolio", "investment", "investor", "dividend", "earnings", "revenue",
	"company", "companies", "sector", "industry", "financial", "finance",
}

const scopeWarning = "Warning: This query doesn't appear to be related to stock data. This application is designed to answer questions about stock market data only. Please ask questions about stocks, companies, trading, or financial data."

func inScope(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, keyword := range stockKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
