package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/kvbench/internal/metrics"
)

// RunInfo holds run parameters for display.
type RunInfo struct {
	Endpoint    string
	Workers     int
	Iterations  int
	OpRate      int           // pairs per second per worker (0 = unlimited)
	OpTimeout   time.Duration // per-operation timeout
	JoinTimeout time.Duration // 0 waits forever
	ConfigFile  string
}

const maxEvents = 8

// Dashboard renders a live terminal UI for a benchmark run. It also receives
// connection events and the start countdown, so it can replace the line
// printers while the terminal is taken over.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex
	stopOnce     sync.Once
	running      bool

	grid         *ui.Grid
	summaryPara  *widgets.Paragraph
	workersGauge *widgets.Gauge
	opsTable     *widgets.Table
	latencyLines *widgets.SparklineGroup
	errorList    *widgets.List
	eventList    *widgets.List

	readHistory  []float64
	writeHistory []float64
	events       []string
	remaining    time.Duration
	started      bool
	info         RunInfo
}

// New creates a Dashboard. Nothing is drawn until Start; events and the
// countdown received before then are kept. shutdownFunc is called when the
// user presses q or Ctrl-C.
func New(collector *metrics.Collector, info RunInfo, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		collector:    collector,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		readHistory:  make([]float64, 0, 100),
		writeHistory: make([]float64, 0, 100),
		info:         info,
	}
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.workersGauge = widgets.NewGauge()
	d.workersGauge.Title = "Connections Finished"
	d.workersGauge.BarColor = ui.ColorBlue
	d.workersGauge.BorderStyle.Fg = ui.ColorCyan
	d.workersGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.opsTable = widgets.NewTable()
	d.opsTable.Title = "Operations (ms)"
	d.opsTable.Rows = formatOpRows(metrics.Stats{})
	d.opsTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.opsTable.RowSeparator = false
	d.opsTable.BorderStyle.Fg = ui.ColorCyan

	read := widgets.NewSparkline()
	read.Title = "read mean"
	read.LineColor = ui.ColorGreen
	read.Data = []float64{0}
	write := widgets.NewSparkline()
	write.Title = "write mean"
	write.LineColor = ui.ColorMagenta
	write.Data = []float64{0}
	d.latencyLines = widgets.NewSparklineGroup(read, write)
	d.latencyLines.Title = "Latency"
	d.latencyLines.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = formatErrorRows(nil)
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.eventList = widgets.NewList()
	d.eventList.Title = "Connections"
	d.eventList.Rows = []string{"Awaiting connections"}
	d.eventList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.eventList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.workersGauge),
		),
		ui.NewRow(0.26,
			ui.NewCol(1.0, d.opsTable),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.latencyLines),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.5, d.eventList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// SetEndpoint sets the endpoint line shown once the run is underway.
func (d *Dashboard) SetEndpoint(endpoint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.Endpoint = endpoint
}

// Start takes over the terminal and begins the update loop.
func (d *Dashboard) Start() error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to initialize termui: %w", err)
	}
	d.mu.Lock()
	d.initWidgets()
	d.setupGrid()
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run()
	return nil
}

// Stop stops the dashboard and restores the terminal. It is safe to call
// more than once, and before Start.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.mu.Lock()
		running := d.running
		d.mu.Unlock()
		if !running {
			return
		}
		d.wg.Wait()
		ui.Close()
		// Give terminal time to restore
		time.Sleep(100 * time.Millisecond)
	})
}

// Connected records a connection event.
func (d *Dashboard) Connected(id int, latency time.Duration) {
	d.pushEvent(fmt.Sprintf("#%d established in %.3f ms", id, msOf(latency)))
}

// Finished records a worker completion event.
func (d *Dashboard) Finished(id int, elapsed time.Duration, failed bool) {
	line := fmt.Sprintf("#%d ran for %.3f ms", id, msOf(elapsed))
	if failed {
		line = fmt.Sprintf("[%s FAILED](fg:red)", line)
	}
	d.pushEvent(line)
}

// Remaining records the time left before the synchronized start.
func (d *Dashboard) Remaining(left time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remaining = left
	if left <= 0 {
		d.started = true
	}
}

func (d *Dashboard) pushEvent(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, line)
	if len(d.events) > maxEvents {
		d.events = d.events[len(d.events)-maxEvents:]
	}
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the loop once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	stats := d.collector.Stats()

	d.mu.Lock()
	defer d.mu.Unlock()

	if read := stats.Ops[metrics.OpRead]; read.Successes > 0 {
		d.readHistory = appendHistory(d.readHistory, read.MeanMs)
		d.latencyLines.Sparklines[0].Data = d.readHistory
		d.latencyLines.Sparklines[0].Title = fmt.Sprintf("read mean %.3f ms", read.MeanMs)
	}
	if write := stats.Ops[metrics.OpWrite]; write.Successes > 0 {
		d.writeHistory = appendHistory(d.writeHistory, write.MeanMs)
		d.latencyLines.Sparklines[1].Data = d.writeHistory
		d.latencyLines.Sparklines[1].Title = fmt.Sprintf("write mean %.3f ms", write.MeanMs)
	}

	d.workersGauge.Percent = finishedPercent(stats.FinishedWorkers, d.info.Workers)
	d.workersGauge.Label = fmt.Sprintf("%d/%d (%d failed)", stats.FinishedWorkers, d.info.Workers, stats.FailedWorkers)

	d.summaryPara.Text = fmt.Sprintf("%s\n%s\n%s",
		d.info.Endpoint,
		formatRunParams(d.info),
		phaseText(d.started, d.remaining, stats),
	)
	d.opsTable.Rows = formatOpRows(stats)
	d.errorList.Rows = formatErrorRows(stats.Errors)
	if len(d.events) > 0 {
		d.eventList.Rows = append([]string(nil), d.events...)
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func appendHistory(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > 100 {
		history = history[1:]
	}
	return history
}

func finishedPercent(finished int64, workers int) int {
	if workers <= 0 {
		return 0
	}
	pct := int(finished * 100 / int64(workers))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func phaseText(started bool, remaining time.Duration, stats metrics.Stats) string {
	if !started {
		return fmt.Sprintf("Starting in %.3f s | Connected: %d", remaining.Seconds(), stats.ConnectedWorkers)
	}
	return fmt.Sprintf("Running %s | Connected: %d | %.1f ops/s",
		stats.Elapsed.Round(time.Second), stats.ConnectedWorkers, stats.OpsPerSec)
}

func formatOpRows(stats metrics.Stats) [][]string {
	rows := [][]string{{"Op", "Total", "Failed", "Min", "Mean", "P50", "P90", "P99", "Max"}}
	for _, op := range metrics.Ops {
		s := stats.Ops[op]
		rows = append(rows, []string{
			string(op),
			fmt.Sprintf("%d", s.Total),
			fmt.Sprintf("%d", s.Failures),
			fmt.Sprintf("%.3f", s.MinMs),
			fmt.Sprintf("%.3f", s.MeanMs),
			fmt.Sprintf("%.3f", s.P50Ms),
			fmt.Sprintf("%.3f", s.P90Ms),
			fmt.Sprintf("%.3f", s.P99Ms),
			fmt.Sprintf("%.3f", s.MaxMs),
		})
	}
	return rows
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	type row struct {
		name  string
		count int
	}
	rows := make([]row, 0, len(errs))
	for name, count := range errs {
		rows = append(rows, row{metrics.FriendlyErrorName(name), count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count == rows[j].count {
			return rows[i].name < rows[j].name
		}
		return rows[i].count > rows[j].count
	})
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, r := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", r.name, r.count))
	}
	return formatted
}

// formatRunParams formats the run parameters for display.
func formatRunParams(info RunInfo) string {
	parts := []string{
		fmt.Sprintf("Workers: %d", info.Workers),
		fmt.Sprintf("Iterations: %d", info.Iterations),
	}
	if info.OpRate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", info.OpRate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if info.OpTimeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", info.OpTimeout))
	}
	if info.JoinTimeout > 0 {
		parts = append(parts, fmt.Sprintf("Join: %s", info.JoinTimeout))
	}
	if info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", info.ConfigFile))
	}
	return strings.Join(parts, " | ")
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
