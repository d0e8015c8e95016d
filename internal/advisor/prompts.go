package advisor

import (
	"fmt"
	"strings"
	"time"

	"crypto-ai-trader/internal/market"
)

const systemPromptTemplate = `
You are an expert cryptocurrency analyst and trader with deep knowledge of blockchain technology, market dynamics, and technical analysis.

Your role is to:
- Analyze cryptocurrency market data, including price movements, trading volumes, and market sentiment
- Evaluate technical indicators such as RSI, MACD, moving averages, and support/resistance levels
- Consider fundamental factors like project developments, adoption rates, regulatory news, and market trends
- Assess risk factors and market volatility specific to cryptocurrency markets
- Provide clear trading recommendations (BUY, SELL, or HOLD) with detailed reasoning
- Suggest entry and exit points, stop-loss levels, and position sizing when appropriate
- Consider current account positions and portfolio allocation
- Stay objective and data-driven in your analysis

When analyzing cryptocurrencies, you should:
1. Review current price action and recent trends
2. Examine relevant technical indicators:
   - EMA (20-period) for trend direction on multiple timeframes
   - MACD for momentum and trend changes on multiple timeframes
   - RSI (7-period) for short-term overbought/oversold conditions
   - RSI (14-period) for medium-term overbought/oversold conditions
   - ATR for volatility assessment
3. Consider market structure including open interest and funding rates
4. Evaluate volume trends and market participation
5. Assess risk-reward ratios
6. Consider current account positions:
   - If there are existing positions, evaluate whether to CLOSE them or ADJUST them
   - If there are no positions, consider whether to OPEN new ones
   - Consider the impact of leverage on potential profits and losses
7. Provide a clear recommendation with supporting evidence

IMPORTANT: You MUST conclude your analysis with one of these three recommendations:
- **BUY**: When technical indicators are bullish, momentum is positive, and risk-reward ratio favors entering a long position or closing a short position
- **SELL**: When technical indicators are bearish, momentum is negative, or it's time to take profits/cut losses, or close a long position
- **HOLD**: When the market is consolidating, signals are mixed, or it's prudent to wait for clearer direction

Your final recommendation must be clearly stated in this format:
**RECOMMENDATION: [BUY/SELL/HOLD]**

Followed by:
- Target Entry Price (for BUY/SELL to open new positions)
- Stop Loss Level
- Take Profit Targets
- Position Size Suggestion (%% of portfolio)
- Risk Level: [LOW/MEDIUM/HIGH]

Always prioritize risk management and remind users that cryptocurrency trading carries significant risks. Never invest more than you can afford to lose.

IMPORTANT: Please format your response as JSON. The response should be a valid JSON object.

Today is %s
`

// SystemPrompt returns the analyst instructions with the current date.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02"))
}

// UserPrompt renders the market snapshot and account state into the
// analysis request.
func UserPrompt(symbol string, snap *market.Snapshot, account *market.AccountState) string {
	positionInfo := "No open positions"
	if len(account.Positions) > 0 {
		var details []string
		for _, p := range account.Positions {
			if p.Contracts == 0 {
				continue
			}
			details = append(details, fmt.Sprintf(
				"%s: %s %v contracts at entry price %v, unrealized PNL: %v, leverage: %dx",
				p.Symbol, p.Side, p.Contracts, p.EntryPrice, p.UnrealizedPnL, p.Leverage))
		}
		if len(details) > 0 {
			positionInfo = strings.Join(details, "\n")
		}
	}

	midPrices := make([]string, len(snap.Intraday.MidPrices))
	for i, p := range snap.Intraday.MidPrices {
		midPrices[i] = fmt.Sprintf("%.1f", p)
	}

	return fmt.Sprintf(`
# HERE IS THE CURRENT MARKET STATE
## ALL %s DATA FOR YOU TO ANALYZE
Current Market State:
current_price = %v,
EMA (20-period, 1m) = %.3f,
EMA (20-period, 4h) = %.3f,
EMA (50-period, 4h) = %.3f,
RSI (7 period) = %.3f
RSI (14 period, 1m) = %.3f
RSI (14 period, 4h) = %.3f
ATR (3 period, 4h) = %.3f
ATR (14 period, 4h) = %.3f
MACD (1m) = %.3f
MACD Signal (1m) = %.3f
MACD Histogram (1m) = %.3f
MACD (4h) = %.3f
MACD Signal (4h) = %.3f
MACD Histogram (4h) = %.3f

In addition, here is the latest %s open interest and funding rate for perps (the instrument you are trading):

Open Interest: Latest: %.2f Average: %.2f

Funding Rate: %.2e

Intraday series (by minute, oldest → latest):
Mid prices: [%s]

Current Volume: %.3f vs. Average Volume: %.3f

# HERE IS THE CURRENT ACCOUNT STATE
Account Information:
Total Cash Value = $%.2f
Available Cash = $%.2f
Current Total Return = %.2f%%

Current Positions:
%s

IMPORTANT: Consider current positions when making trading decisions.
If there are existing positions, you may want to CLOSE them or ADJUST them rather than opening new ones.
`,
		baseAsset(symbol),
		snap.CurrentPrice,
		snap.EMA20Short,
		snap.EMA20Long,
		snap.EMA50Long,
		snap.RSI7,
		snap.RSI14Short,
		snap.RSI14Long,
		snap.ATR3Long,
		snap.ATR14Long,
		snap.MACDShort.MACD,
		snap.MACDShort.Signal,
		snap.MACDShort.Histogram,
		snap.MACDLong.MACD,
		snap.MACDLong.Signal,
		snap.MACDLong.Histogram,
		baseAsset(symbol),
		snap.OpenInterest.Latest,
		snap.OpenInterest.Average,
		snap.FundingRate,
		strings.Join(midPrices, ", "),
		snap.Volume.Current,
		snap.Volume.Average,
		account.TotalCashValue,
		account.AvailableCash,
		account.CurrentTotalReturn*100,
		positionInfo,
	)
}

func baseAsset(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(symbol)), "USDT")
}
