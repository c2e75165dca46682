package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mcsweep/internal/model"
)

const maxRows = 10000

// Filter presets
const (
	FilterAll     = 0
	FilterModded  = 1 // forge, fabric, quilt, liteloader
	FilterPlugin  = 2 // spigot, paper, bukkit
	FilterVanilla = 3
)

// platformFamily maps a platform tag onto its filter preset.
func platformFamily(tag string) int {
	switch tag {
	case "forge", "fabric", "quilt", "liteloader":
		return FilterModded
	case "spigot", "paper", "bukkit":
		return FilterPlugin
	default:
		return FilterVanilla
	}
}

// serverRow is one discovered server, keyed by address.
type serverRow struct {
	model.StatusRecord
	seq int // insertion order
}

// Model is the bubbletea TUI model.
type Model struct {
	// Config
	Prefixes string
	RunMode  string
	Results  string

	// Data
	rows    map[string]*serverRow
	order   []string
	nextSeq int

	// Stats
	stats         ScanStats
	state         string
	lastReachable string
	lastProgress  string
	lastInfo      string

	// Cumulative counters (survive eviction)
	totalAll     uint64
	totalFamily  [4]uint64
	platforms    map[string]uint64
	topPlatforms []platformCount
	topDirty     bool

	// Discovery sparkline: servers found per stats tick
	sparkBuf    [60]uint64
	sparkIdx    int
	sparkPrev   uint64
	sparkFilled int

	// View state
	cursor     int
	offset     int
	follow     bool
	filterMode int
	searching  bool
	searchText string
	filtered   []*serverRow

	// Terminal
	width, height int
	done          bool
	quitting      bool
}

type platformCount struct {
	Tag   string
	Count uint64
}

func NewModel(prefixes, runMode, results string) Model {
	return Model{
		Prefixes:   prefixes,
		RunMode:    runMode,
		Results:    results,
		rows:       make(map[string]*serverRow, 256),
		order:      make([]string, 0, 256),
		platforms:  make(map[string]uint64, 8),
		follow:     true,
		filterMode: FilterAll,
	}
}

// Quitting reports whether the user closed the TUI before the run finished.
func (m Model) Quitting() bool { return m.quitting }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateNormal(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildFiltered()

	case ScanEvent:
		m.handleEvent(msg)
		if m.done {
			return m, tea.Quit
		}
		m.rebuildFiltered()
		if m.follow {
			m.cursorToEnd()
		}

	case ScanStats:
		m.stats = msg
		if msg.State != "" {
			m.state = msg.State
		}
		m.tickSparkline()
	}

	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, nil
	case "1", "2", "3", "4":
		m.filterMode = int(msg.String()[0] - '1')
		m.rebuildFiltered()
		m.clampCursor()
		return m, nil
	case "f":
		m.follow = !m.follow
		if m.follow {
			m.cursorToEnd()
		}
		return m, nil
	}

	vis := m.visibleRows()
	switch msg.String() {
	case "j", "down":
		m.follow = false
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		m.ensureVisible()
	case "k", "up":
		m.follow = false
		if m.cursor > 0 {
			m.cursor--
		}
		m.ensureVisible()
	case "pgdown", "ctrl+d":
		m.follow = false
		m.cursor += vis
		if m.cursor >= len(m.filtered) {
			m.cursor = len(m.filtered) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()
	case "pgup", "ctrl+u":
		m.follow = false
		m.cursor -= vis
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()
	case "g", "home":
		m.follow = false
		m.cursor = 0
		m.offset = 0
	case "G", "end":
		m.follow = true
		m.cursorToEnd()
	case "esc":
		if m.searchText != "" {
			m.searchText = ""
			m.rebuildFiltered()
			m.clampCursor()
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
	case "backspace":
		if len(m.searchText) > 0 {
			m.searchText = m.searchText[:len(m.searchText)-1]
			m.rebuildFiltered()
			m.clampCursor()
		}
	case "ctrl+u":
		m.searchText = ""
		m.rebuildFiltered()
		m.clampCursor()
	default:
		if len(msg.String()) == 1 {
			m.searchText += msg.String()
			m.rebuildFiltered()
			m.clampCursor()
		}
	}
	return m, nil
}

func (m *Model) handleEvent(ev ScanEvent) {
	switch ev.Type {
	case EvtReachable:
		m.lastReachable = fmt.Sprintf("%s:%d", ev.Address, ev.Port)
		m.lastProgress = ev.Progress

	case EvtServer:
		if ev.Server == nil {
			return
		}
		if _, exists := m.rows[ev.Server.Address]; exists {
			return
		}
		m.totalAll++
		m.totalFamily[platformFamily(ev.Server.PlatformTag)]++
		m.platforms[ev.Server.PlatformTag]++
		m.topDirty = true
		m.rows[ev.Server.Address] = &serverRow{StatusRecord: *ev.Server, seq: m.nextSeq}
		m.nextSeq++
		m.order = append(m.order, ev.Server.Address)
		m.evictOld()

	case EvtState:
		m.state = ev.State

	case EvtInfo:
		m.lastInfo = strings.TrimSpace(ev.Msg)

	case EvtDone:
		m.done = true
	}
}

func (m *Model) evictOld() {
	for len(m.order) > maxRows {
		old := m.order[0]
		m.order = m.order[1:]
		delete(m.rows, old)
	}
}

func (m *Model) rebuildTopPlatforms() {
	if !m.topDirty {
		return
	}
	m.topDirty = false

	pcs := make([]platformCount, 0, len(m.platforms))
	for tag, c := range m.platforms {
		pcs = append(pcs, platformCount{tag, c})
	}
	sort.Slice(pcs, func(i, j int) bool {
		if pcs[i].Count != pcs[j].Count {
			return pcs[i].Count > pcs[j].Count
		}
		return pcs[i].Tag < pcs[j].Tag
	})
	m.topPlatforms = pcs
}

func (m *Model) tickSparkline() {
	cur := m.totalAll
	delta := cur - m.sparkPrev
	m.sparkPrev = cur
	m.sparkBuf[m.sparkIdx] = delta
	m.sparkIdx = (m.sparkIdx + 1) % len(m.sparkBuf)
	if m.sparkFilled < len(m.sparkBuf) {
		m.sparkFilled++
	}
}

func (m *Model) rebuildFiltered() {
	m.filtered = m.filtered[:0]
	needle := strings.ToLower(m.searchText)

	for _, key := range m.order {
		row, ok := m.rows[key]
		if !ok {
			continue
		}
		if m.filterMode != FilterAll && platformFamily(row.PlatformTag) != m.filterMode {
			continue
		}
		if needle != "" {
			hay := strings.ToLower(row.Address + " " + row.PlatformTag + " " + row.Version + " " + row.MOTD)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		m.filtered = append(m.filtered, row)
	}
}

func (m *Model) clampCursor() {
	if len(m.filtered) == 0 {
		m.cursor = 0
		m.offset = 0
		return
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	m.ensureVisible()
}

func (m *Model) cursorToEnd() {
	if len(m.filtered) > 0 {
		m.cursor = len(m.filtered) - 1
	} else {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *Model) ensureVisible() {
	vis := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+vis {
		m.offset = m.cursor - vis + 1
	}
}

// visibleRows returns how many table rows fit on screen.
// Layout: 4 header lines + col header + separator + table + separator + detail + help
func (m Model) visibleRows() int {
	chrome := 4 + 1 + 1 + 1 + m.detailHeight() + 1
	rows := m.height - chrome
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m Model) detailHeight() int {
	h := m.height / 4
	if h < 3 {
		h = 3
	}
	if h > 8 {
		h = 8
	}
	return h
}

// elapsedString rounds to whole seconds for display.
func elapsedString(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
