package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RSISentinel/internal/model"
	"RSISentinel/internal/recorder"
	"RSISentinel/internal/scanstate"
	"RSISentinel/internal/strategy"
)

const timeLayout = "2006-01-02 15:04"

func directionEmoji(d model.Direction) string {
	if d == model.Bullish {
		return "🟢"
	}
	return "🔴"
}

// FormatSignal formats one detected signal as a Telegram alert.
func FormatSignal(sig *model.Signal) string {
	var b strings.Builder
	emoji := directionEmoji(sig.Direction)

	switch {
	case sig.Divergence != nil:
		d := sig.Divergence
		b.WriteString(fmt.Sprintf("%s <b>%s DIVERGENCE</b>\n\n", emoji, sig.Direction))
		writeHeader(&b, sig)
		point := "Peak"
		if sig.Direction == model.Bullish {
			point = "Trough"
		}
		b.WriteString("🔍 <b>Pattern:</b>\n")
		b.WriteString(fmt.Sprintf("  %s 1: %s | RSI %.1f\n", point, formatPrice(d.Price1), d.RSI1))
		b.WriteString(fmt.Sprintf("  %s 2: %s | RSI %.1f\n", point, formatPrice(d.Price2), d.RSI2))
		b.WriteString(fmt.Sprintf("  Price: %+.2f%% | RSI: %+.1f | %d candles apart\n\n", d.PriceChangePct, d.RSIChange, d.TimeDistance))
		b.WriteString(fmt.Sprintf("💎 Quality: %s (%.0f/100)\n", html.EscapeString(sig.Label), sig.Strength))
		b.WriteString(fmt.Sprintf("✅ Confirmed: %s\n", yesNo(d.Confirmed)))

	case sig.Reversal != nil:
		r := sig.Reversal
		name, move := "RSI SUPPORT", "Bounce"
		if sig.Direction == model.Bearish {
			name, move = "RSI RESISTANCE", "Rejection"
		}
		b.WriteString(fmt.Sprintf("%s <b>%s REVERSAL</b>\n\n", emoji, name))
		writeHeader(&b, sig)
		b.WriteString("🎯 <b>Pattern:</b>\n")
		b.WriteString(fmt.Sprintf("  Zone: %.0f-%.0f (level %.1f)\n", r.ZoneLow, r.ZoneHigh, r.ZoneExtreme))
		b.WriteString(fmt.Sprintf("  Touches: %dx (std dev %.2f)\n", r.Touches, r.TouchStdDev))
		b.WriteString(fmt.Sprintf("  Price trend: %+.2f%% (%.0f%% consistent)\n", r.TrendPct, r.TrendConsistency*100))
		b.WriteString(fmt.Sprintf("  %s: %.1f pts | Volume %.2fx | %s\n\n", move, r.Bounce, r.VolumeRatio, html.EscapeString(r.Momentum)))
		b.WriteString(fmt.Sprintf("💪 Strength: %s (%.0f/100)\n", html.EscapeString(sig.Label), sig.Strength))
		b.WriteString(fmt.Sprintf("⚡ Expected: %s reversal\n", sig.Direction))

	default:
		b.WriteString(fmt.Sprintf("%s <b>%s %s</b>\n\n", emoji, sig.Direction, sig.Kind))
		writeHeader(&b, sig)
	}

	if sig.MTF != nil {
		m := sig.MTF
		b.WriteString(fmt.Sprintf("\n🧭 %s trend: %s | %s confidence\n", m.HigherTimeframe, m.Trend, m.Confidence))
		b.WriteString(fmt.Sprintf("   %s\n", html.EscapeString(m.Recommendation)))
	}
	if sig.Explanation != "" {
		b.WriteString(fmt.Sprintf("\n📝 %s\n", html.EscapeString(sig.Explanation)))
	}
	b.WriteString(fmt.Sprintf("\n🕐 %s UTC", sig.Timestamp.UTC().Format(timeLayout)))
	return b.String()
}

func writeHeader(b *strings.Builder, sig *model.Signal) {
	b.WriteString(fmt.Sprintf("📊 Coin: <b>%s</b>\n", html.EscapeString(sig.Symbol)))
	b.WriteString(fmt.Sprintf("⏰ Timeframe: %s\n", sig.Timeframe))
	b.WriteString(fmt.Sprintf("💰 Price: %s\n", formatPrice(sig.CurrentPrice)))
	b.WriteString(fmt.Sprintf("📈 RSI: %.1f\n\n", sig.CurrentRSI))
}

// formatPrice widens precision for low-priced coins.
func formatPrice(p float64) string {
	if p < 1 {
		return fmt.Sprintf("$%.6f", p)
	}
	if p < 100 {
		return fmt.Sprintf("$%.4f", p)
	}
	return fmt.Sprintf("$%.2f", p)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func kindName(k model.SignalKind) string {
	if k == model.KindReversal {
		return "Reversal"
	}
	return "Divergence"
}

// FormatScanSummary lists the signals a scan found, strongest first as given.
func FormatScanSummary(signals []model.Signal, symbols int, took time.Duration) string {
	var b strings.Builder
	b.WriteString("🔎 <b>Scan complete</b>\n\n")
	b.WriteString(fmt.Sprintf("Symbols: %d | Took: %s\n", symbols, took.Round(time.Second)))
	if len(signals) == 0 {
		b.WriteString("\nNo high-quality signals found.")
		return b.String()
	}

	var bull, bear int
	for _, s := range signals {
		if s.Direction == model.Bullish {
			bull++
		} else {
			bear++
		}
	}
	b.WriteString(fmt.Sprintf("Signals: %d (🟢 %d | 🔴 %d)\n\n", len(signals), bull, bear))
	for _, s := range signals {
		b.WriteString(fmt.Sprintf("%s %s %s - %s %s (%.0f)\n",
			directionEmoji(s.Direction), html.EscapeString(s.Symbol), s.Timeframe,
			kindName(s.Kind), html.EscapeString(s.Label), s.Strength))
	}
	return strings.TrimRight(b.String(), "\n")
}

var zoneStyle = map[strategy.RSIZone]struct{ emoji, title string }{
	strategy.ZoneExtremeOversold:   {"🟣", "Extreme oversold"},
	strategy.ZoneOversold:          {"🔵", "Oversold"},
	strategy.ZoneNeutralLow:        {"🟢", "Approaching oversold"},
	strategy.ZoneNeutral:           {"⚪", "Neutral"},
	strategy.ZoneNeutralHigh:       {"🟡", "Approaching overbought"},
	strategy.ZoneOverbought:        {"🟠", "Overbought"},
	strategy.ZoneExtremeOverbought: {"🔴", "Extreme overbought"},
}

func trendArrow(trend string) string {
	switch trend {
	case strategy.RSIRising:
		return "📈"
	case strategy.RSIFalling:
		return "📉"
	default:
		return "➡️"
	}
}

// FormatZones groups zone readings by timeframe, then by zone from most
// oversold to most overbought. Neutral symbols are counted but not listed.
func FormatZones(readings []strategy.ZoneReading) string {
	var b strings.Builder
	b.WriteString("🎯 <b>RSI Zones</b>\n")
	if len(readings) == 0 {
		b.WriteString("\nNo data available.")
		return b.String()
	}

	var timeframes []string
	byTF := make(map[string][]strategy.ZoneReading)
	for _, r := range readings {
		if _, ok := byTF[r.Timeframe]; !ok {
			timeframes = append(timeframes, r.Timeframe)
		}
		byTF[r.Timeframe] = append(byTF[r.Timeframe], r)
	}

	for _, tf := range timeframes {
		b.WriteString(fmt.Sprintf("\n<b>⏰ %s</b>\n", tf))
		neutral := 0
		for _, zone := range strategy.ZoneOrder {
			if zone == strategy.ZoneNeutral {
				for _, r := range byTF[tf] {
					if r.Zone == zone {
						neutral++
					}
				}
				continue
			}
			style := zoneStyle[zone]
			header := false
			for _, r := range byTF[tf] {
				if r.Zone != zone {
					continue
				}
				if !header {
					b.WriteString(fmt.Sprintf("%s %s:\n", style.emoji, style.title))
					header = true
				}
				b.WriteString(fmt.Sprintf("  %s %s RSI %.1f %s\n",
					html.EscapeString(r.Symbol), formatPrice(r.Price), r.RSI, trendArrow(r.Trend)))
			}
		}
		if neutral > 0 {
			b.WriteString(fmt.Sprintf("%s Neutral: %d coins\n", zoneStyle[strategy.ZoneNeutral].emoji, neutral))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStatus reports scan counters and store statistics.
func FormatStatus(state model.ScanState, stats *recorder.Stats, now time.Time) string {
	var b strings.Builder
	b.WriteString("📦 <b>RSISentinel status</b>\n\n")
	if !state.StartedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Uptime: %s\n", now.Sub(state.StartedAt).Round(time.Minute)))
	}
	b.WriteString(fmt.Sprintf("Scans: %d\n", state.ScanCount))
	if !state.LastScanAt.IsZero() {
		b.WriteString(fmt.Sprintf("Last scan: %s UTC\n", state.LastScanAt.UTC().Format(timeLayout)))
	}
	b.WriteString(fmt.Sprintf("Signals found: %d | Alerts sent: %d\n", state.TotalSignals, state.AlertsSent))
	b.WriteString(fmt.Sprintf("Failed fetches: %d\n", state.FailedFetches))
	if state.FailedDetects > 0 {
		b.WriteString(fmt.Sprintf("Detection errors: %d\n", state.FailedDetects))
	}
	if avg, ok := scanstate.AverageStrength(state); ok {
		b.WriteString(fmt.Sprintf("Avg strength (recent): %.1f\n", avg))
	}

	if stats != nil {
		b.WriteString("\n🗄 <b>Signal store</b>\n")
		b.WriteString(fmt.Sprintf("Total: %d (🟢 %d | 🔴 %d)\n", stats.Total, stats.Bullish, stats.Bearish))
		b.WriteString(fmt.Sprintf("Divergences: %d | Reversals: %d\n", stats.Divergences, stats.Reversals))
		b.WriteString(fmt.Sprintf("Alerted: %d | Last 24h: %d\n", stats.Alerted, stats.Last24h))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatCoins lists the watchlist.
func FormatCoins(symbols, timeframes []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🪙 <b>Watchlist</b> (%d coins)\n\n", len(symbols)))
	for i, s := range symbols {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, html.EscapeString(s)))
	}
	b.WriteString(fmt.Sprintf("\nTimeframes: %s", strings.Join(timeframes, ", ")))
	return b.String()
}

// HelpText describes the bot commands and the zone legend.
func HelpText(quickCount int) string {
	var b strings.Builder
	b.WriteString("🤖 <b>RSISentinel</b>\n\n")
	b.WriteString("Detects RSI divergences and RSI support/resistance reversals.\n\n")
	b.WriteString("<b>Commands</b>\n")
	b.WriteString("/scan - scan the full watchlist\n")
	b.WriteString(fmt.Sprintf("/quick - scan the first %d coins\n", quickCount))
	b.WriteString("/zones - current RSI zones\n")
	b.WriteString("/status - scanner and store statistics\n")
	b.WriteString("/coins - watchlist\n")
	b.WriteString("/help - this message\n\n")
	b.WriteString("<b>Zones</b>\n")
	for _, zone := range strategy.ZoneOrder {
		style := zoneStyle[zone]
		b.WriteString(fmt.Sprintf("%s %s\n", style.emoji, style.title))
	}
	b.WriteString("\nTrend: 📈 rising | 📉 falling | ➡️ stable")
	return b.String()
}
