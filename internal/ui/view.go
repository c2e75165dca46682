package ui

import (
	"fmt"
	"strings"
	"unicode"
)

func (m Model) View() string {
	if m.quitting || m.done {
		return ""
	}

	w := m.width
	if w < 40 {
		w = 80
	}

	var b strings.Builder
	m.renderHeader(&b, w)
	m.renderProgress(&b, w)
	m.renderActivity(&b, w)
	m.renderFilterBar(&b, w)
	m.renderColHeader(&b, w)
	m.renderTable(&b, w)
	m.renderDetail(&b, w)
	m.renderHelp(&b, w)
	return b.String()
}

func (m Model) renderHeader(b *strings.Builder, w int) {
	title := styleAccent.Render("mcsweep")
	meta := styleDim.Render(fmt.Sprintf(" %s · %s · %s", m.RunMode, truncStr(m.Prefixes, 40), truncStr(m.Results, 30)))
	state := ""
	if m.state != "" {
		state = "  " + styleState.Render(m.state)
	}
	b.WriteString(" " + title + meta + state + "\n")
}

func (m Model) renderProgress(b *strings.Builder, w int) {
	barW := 20
	if w > 120 {
		barW = 30
	}

	var bar, pct string
	if m.stats.Progress < 0 {
		// Continuous: a marquee instead of a fill level.
		pos := int(m.stats.Elapsed.Seconds()) % barW
		bar = styleBarTrail.Render(strings.Repeat("░", pos)) + styleBar.Render("█") + styleBarTrail.Render(strings.Repeat("░", barW-pos-1))
		pct = "   ∞"
	} else {
		filled := int(m.stats.Progress * float64(barW))
		if filled > barW {
			filled = barW
		}
		bar = styleBar.Render(strings.Repeat("█", filled)) + styleBarTrail.Render(strings.Repeat("░", barW-filled))
		pct = fmt.Sprintf("%3.0f%%", m.stats.Progress*100)
	}

	spark := m.renderSparkline()
	if spark != "" {
		spark = " " + styleBar.Render(spark)
	}

	stats := fmt.Sprintf("  %s/s  Tested %s  Dup %s  Up %s  Servers%s %s  Q %d/%d",
		fmtCompact(uint64(m.stats.Rate)),
		fmtCompact(m.stats.Tested),
		fmtCompact(m.stats.Duplicates),
		fmtCompact(m.stats.Reachable),
		spark,
		fmtCompact(m.stats.Servers),
		m.stats.DiscoveryQueue,
		m.stats.AnalysisQueue)

	line := fmt.Sprintf(" %s %s%s  %s", bar, pct, styleDim.Render(stats), styleDim.Render(elapsedString(m.stats.Elapsed)))
	b.WriteString(line + "\n")
}

// renderActivity shows the platform breakdown and the latest reachable host.
func (m *Model) renderActivity(b *strings.Builder, w int) {
	m.rebuildTopPlatforms()

	var parts []string
	for _, pc := range m.topPlatforms {
		parts = append(parts, platformStyle(pc.Tag).Render(pc.Tag)+styleDim.Render(":"+fmtCompact(pc.Count)))
	}
	line := " "
	if len(parts) > 0 {
		line += strings.Join(parts, "  ")
	} else {
		line += styleDim.Render("no servers yet")
	}
	if m.lastReachable != "" {
		line += styleDim.Render(fmt.Sprintf("   last up %s [%s]", m.lastReachable, m.lastProgress))
	}
	if m.lastInfo != "" {
		line += styleDim.Render("   " + truncStr(m.lastInfo, 40))
	}
	b.WriteString(line + "\n")
}

func (m Model) renderFilterBar(b *strings.Builder, w int) {
	tabs := " " + m.renderTab("1:All", m.totalAll, FilterAll) +
		" " + m.renderTab("2:Modded", m.totalFamily[FilterModded], FilterModded) +
		" " + m.renderTab("3:Plugin", m.totalFamily[FilterPlugin], FilterPlugin) +
		" " + m.renderTab("4:Vanilla", m.totalFamily[FilterVanilla], FilterVanilla)

	search := ""
	if m.searching {
		search = styleFilterBox.Render("  /" + m.searchText + "▌")
	} else if m.searchText != "" {
		search = styleDim.Render("  /") + styleFilterBox.Render(m.searchText)
	}

	followInd := ""
	if m.follow {
		followInd = styleDim.Render("  [follow]")
	}

	b.WriteString(tabs + search + followInd + "\n")
}

func (m Model) renderTab(label string, count uint64, mode int) string {
	text := fmt.Sprintf(" %s:%d ", label, count)
	if m.filterMode == mode {
		return styleTabActive.Render(text)
	}
	return styleTabInactive.Render(text)
}

// Column widths; MOTD takes the rest.
const (
	colAddr     = 16
	colPlatform = 11
	colPlayers  = 9
	colVersion  = 22
)

func (m Model) motdWidth(w int) int {
	motdW := w - colAddr - colPlatform - colPlayers - colVersion - 6
	if motdW < 10 {
		motdW = 10
	}
	return motdW
}

func (m Model) renderColHeader(b *strings.Builder, w int) {
	line := fmt.Sprintf(" %-*s %-*s %-*s %-*s %s",
		colAddr, "ADDRESS",
		colPlatform, "PLATFORM",
		colPlayers, "PLAYERS",
		colVersion, "VERSION",
		"MOTD")
	b.WriteString(styleColHeader.Render(line) + "\n")
	b.WriteString(styleSep.Render(" "+strings.Repeat("─", w-2)) + "\n")
}

func (m Model) renderTable(b *strings.Builder, w int) {
	vis := m.visibleRows()
	motdW := m.motdWidth(w)

	end := m.offset + vis
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	for i := m.offset; i < end; i++ {
		row := m.filtered[i]
		addr := padRight(row.Address, colAddr)
		plat := padRight(row.PlatformTag, colPlatform)
		players := padRight(fmt.Sprintf("%d/%d", row.OnlinePlayers, row.MaxPlayers), colPlayers)
		version := padRight(oneLine(row.Version, colVersion), colVersion)
		motd := oneLine(row.MOTD, motdW)

		if i == m.cursor {
			marker := styleAccent.Render("▸")
			content := fmt.Sprintf("%s %s %s %s %s", addr, plat, players, version, motd)
			b.WriteString(marker + styleCursor.Render(truncStr(content, w-2)) + "\n")
			continue
		}
		b.WriteString(fmt.Sprintf(" %s %s %s %s %s\n",
			addr,
			platformStyle(row.PlatformTag).Render(plat),
			players,
			styleDim.Render(version),
			styleMOTD.Render(motd)))
	}

	for i := end - m.offset; i < vis; i++ {
		b.WriteString(styleDim.Render(" ~") + "\n")
	}
}

func (m Model) renderDetail(b *strings.Builder, w int) {
	detailH := m.detailHeight()
	b.WriteString(styleSep.Render(" "+strings.Repeat("─", w-2)) + "\n")

	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		for i := 0; i < detailH-1; i++ {
			b.WriteString("\n")
		}
		return
	}

	row := m.filtered[m.cursor]
	header := fmt.Sprintf(" %s  [%s]  %s  protocol=%d  players=%d/%d",
		row.HostPort(), row.PlatformTag, sanitize(row.Version), row.Protocol, row.OnlinePlayers, row.MaxPlayers)
	if !row.FoundAt.IsZero() {
		header += "  found " + row.FoundAt.Local().Format("15:04:05")
	}
	b.WriteString(styleHeader.Render(truncStr(header, w)) + "\n")

	lines := splitLines(row.MOTD, w-2)
	shown := 0
	for _, line := range lines {
		if shown >= detailH-2 {
			break
		}
		b.WriteString(" " + styleDetailText.Render(line) + "\n")
		shown++
	}
	for i := shown; i < detailH-2; i++ {
		b.WriteString("\n")
	}
}

func (m Model) renderHelp(b *strings.Builder, w int) {
	help := " q:quit  ↑↓/jk:scroll  g/G:top/end  1-4:filter  /:search  f:follow"
	b.WriteString(styleHelp.Render(truncStr(help, w)))
}

func (m Model) renderSparkline() string {
	if m.sparkFilled == 0 {
		return ""
	}
	sparks := []rune("▁▂▃▄▅▆▇█")
	n := len(m.sparkBuf)

	var maxVal uint64
	for i := 0; i < m.sparkFilled; i++ {
		idx := (m.sparkIdx - m.sparkFilled + i + n) % n
		if m.sparkBuf[idx] > maxVal {
			maxVal = m.sparkBuf[idx]
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var sb strings.Builder
	for i := 0; i < m.sparkFilled; i++ {
		idx := (m.sparkIdx - m.sparkFilled + i + n) % n
		level := int(m.sparkBuf[idx] * 7 / maxVal)
		if level > 7 {
			level = 7
		}
		sb.WriteRune(sparks[level])
	}
	return sb.String()
}

// ── Text helpers ──────────────────────────────────────────────────────

// sanitize drops control characters (including ESC, so no terminal escape
// sequences survive) and turns tabs into spaces.
func sanitize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\t':
			sb.WriteByte(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// oneLine joins a multi-line MOTD into a single sanitized line of at most maxW runes.
func oneLine(raw string, maxW int) string {
	if raw == "" {
		return ""
	}
	line := strings.Join(strings.Fields(sanitize(strings.ReplaceAll(raw, "\n", " "))), " ")
	return truncStr(line, maxW)
}

// splitLines splits raw text into sanitized display lines.
func splitLines(raw string, maxW int) []string {
	if raw == "" {
		return []string{styleDim.Render("(no motd)")}
	}
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(s, "\n") {
		out = append(out, truncStr(sanitize(p), maxW))
	}
	return out
}

func fmtNum(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1_000_000, (n/1000)%1000, n%1000)
}

func fmtCompact(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 10_000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.0fk", float64(n)/1000)
	}
	if n < 10_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	return fmt.Sprintf("%.0fM", float64(n)/1_000_000)
}

func padRight(s string, w int) string {
	r := []rune(s)
	if len(r) >= w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}

func truncStr(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w < 2 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}
