package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Notifier pushes trading events to one Telegram chat. Delivery is
// fire-and-forget: send failures are logged and dropped so a dead bot
// token can never stall a trade.
type Notifier struct {
	bot    *tele.Bot
	chat   *tele.User
	logger ports.Logger
}

// NewNotifier builds the Telegram notifier. An empty token returns a
// nil notifier, which every method treats as a no-op, so callers wire
// it unconditionally.
func NewNotifier(token string, chatID int64, logger ports.Logger) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Notifier{
		bot:    bot,
		chat:   &tele.User{ID: chatID},
		logger: logger,
	}, nil
}

func (n *Notifier) send(ctx context.Context, msg string) {
	if n == nil {
		return
	}
	if _, err := n.bot.Send(n.chat, msg, tele.ModeMarkdown); err != nil {
		n.logger.Warn(ctx, "Telegram delivery failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// TokenDetected announces a new pair listing.
func (n *Notifier) TokenDetected(ctx context.Context, token *domain.TokenInfo, pair domain.Address) {
	n.send(ctx, fmt.Sprintf("🔍 *New pair detected*\nToken: %s (%s)\nAddress: `%s`\nPair: `%s`",
		token.Name, token.Symbol, token.Address, pair))
}

// VerdictReady reports the security decision for a candidate.
func (n *Notifier) VerdictReady(ctx context.Context, verdict *domain.Verdict, symbol string) {
	if verdict.IsSafe {
		n.send(ctx, fmt.Sprintf("✅ *%s passed security checks*\n`%s`", symbol, verdict.Token))
		return
	}
	n.send(ctx, fmt.Sprintf("🚫 *%s rejected*\n`%s`\nReasons:\n• %s",
		symbol, verdict.Token, strings.Join(verdict.FailedReasons, "\n• ")))
}

// BuyAttempt announces that a purchase is being submitted.
func (n *Notifier) BuyAttempt(ctx context.Context, token *domain.TokenInfo, amountBNB float64) {
	n.send(ctx, fmt.Sprintf("🎯 *Buying %s*\nAmount: %.4f BNB\n`%s`", token.Symbol, amountBNB, token.Address))
}

// BuyResult reports a purchase attempt.
func (n *Notifier) BuyResult(ctx context.Context, report *ports.BuyReport) {
	if report.Err != "" {
		n.send(ctx, fmt.Sprintf("❌ *Buy failed: %s*\n`%s`\n%s", report.Symbol, report.Token, report.Err))
		return
	}
	n.send(ctx, fmt.Sprintf("💰 *Bought %s*\nSpent: %.4f BNB\nReceived: %.4f tokens\nGas: %.5f BNB\nTx: `%s`",
		report.Symbol, report.AmountBNB, report.Tokens, report.GasBNB, report.TxHash))
}

// SaleExecuted reports one sell.
func (n *Notifier) SaleExecuted(ctx context.Context, report *ports.SaleReport) {
	n.send(ctx, fmt.Sprintf("📤 *Sold %s* (%s)\nTokens: %.4f\nProceeds: %.4f BNB\nGas: %.5f BNB\nTx: `%s`",
		report.Symbol, report.Reason, report.TokensSold, report.ProceedsBNB, report.GasBNB, report.TxHash))
}

// PositionClosed reports a completed trade.
func (n *Notifier) PositionClosed(ctx context.Context, report *ports.CloseReport) {
	icon := "🟢 WIN"
	if !report.Win {
		icon = "🔴 LOSS"
	}
	n.send(ctx, fmt.Sprintf("%s *%s closed* (%s)\nInvested: %.4f BNB\nReturned: %.4f BNB\nP/L: %+.4f BNB\nHeld: %s",
		icon, report.Symbol, report.Reason, report.Investment, report.NetProceeds, report.NetProfit,
		report.Held.Round(time.Second)))
}

// Summary pushes the periodic portfolio snapshot.
func (n *Notifier) Summary(ctx context.Context, report *ports.SummaryReport) {
	t := report.Totals
	n.send(ctx, fmt.Sprintf(
		"📊 *Session summary*\nUptime: %s\nPairs seen: %d\nAnalyzed: %d\nBought: %d\nOpen: %d\nWins/Losses: %d/%d (%.1f%%)\nNet P/L: %+.4f BNB\nFees: %.5f BNB",
		report.Uptime.Round(time.Second), report.PairsDetected, report.TokensAnalyzed, report.TokensBought,
		report.OpenPositions, t.SuccessfulTrades, t.FailedTrades, t.WinRate(), t.NetProfitBNB, t.FeesPaidBNB))
}

// Error pushes an operational error notice.
func (n *Notifier) Error(ctx context.Context, scope string, err error) {
	n.send(ctx, fmt.Sprintf("⚠️ *Error* in %s\n`%v`", scope, err))
}

var _ ports.Notifier = (*Notifier)(nil)
