package plugins

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	rlog "github.com/reglet-dev/reglet-compose/log"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/trainer/mixins"
	"github.com/reglet-dev/reglet-compose/unit"
)

var (
	progressLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	progressStats = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Progress renders a progress line after every training batch and a
// summary after every epoch. The bar tracks epochs against max_epochs when
// set. Unless Force is set it disables itself when Writer is not a terminal.
type Progress struct {
	plugin.Base

	Writer io.Writer `copier:"-"`
	Width  int
	Force  bool

	bar     progress.Model
	started time.Time
	batches int

	_ hook.On `hook:"engine_start" method:"Start"`
	_ hook.On `hook:"train_batch_end" method:"Batch"`
	_ hook.On `hook:"train_epoch_end" method:"Epoch"`
	_ hook.On `hook:"engine_end" method:"End"`
}

// NewProgress creates a Progress prototype writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{Writer: w, Width: 30}
}

func (p *Progress) Declare() unit.Spec {
	return unit.Spec{
		Name: "progress",
		HookTypes: []entities.EventType{
			trainer.EngineStart, trainer.EngineEnd,
			trainer.BatchEnd(trainer.EntryTrain), trainer.EpochEnd(trainer.EntryTrain),
		},
	}
}

func (p *Progress) writer() io.Writer {
	if p.Writer == nil {
		return os.Stderr
	}
	return p.Writer
}

// Start resets the bar; it disables the plugin off-terminal or when not
// training.
func (p *Progress) Start(entry string) {
	if trainer.Entry(entry) != trainer.EntryTrain || (!p.Force && !rlog.IsTerminal(p.writer())) {
		p.SetEnabled(false)
		return
	}
	width := p.Width
	if width <= 0 {
		width = 30
	}
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(width), progress.WithoutPercentage())
	p.started = time.Now()
	p.batches = 0
}

// Batch redraws the progress line.
func (p *Progress) Batch(batch int) error {
	p.batches++
	_, err := fmt.Fprintf(p.writer(), "\r%s", p.line(batch))
	return err
}

// Epoch prints the epoch summary on its own line.
func (p *Progress) Epoch(epoch int) error {
	_, err := fmt.Fprintf(p.writer(), "\r%s\n", p.summary(epoch))
	return err
}

// End prints the total run time.
func (p *Progress) End() error {
	_, err := fmt.Fprintf(p.writer(), "%s\n",
		progressStats.Render(fmt.Sprintf("done: %s batches, started %s",
			humanize.Comma(int64(p.batches)), humanize.Time(p.started))))
	return err
}

func (p *Progress) line(batch int) string {
	eng, err := trainer.Parent(p)
	if err != nil {
		return ""
	}
	epoch := eng.Params.Epoch()
	parts := []string{progressLabel.Render(fmt.Sprintf("epoch %d", epoch))}
	if limit := eng.Params.GetIntDefault(mixins.KeyMaxEpochs, 0); limit > 0 {
		done := float64(epoch-1) / float64(limit)
		parts = append(parts, p.bar.ViewAs(min(max(done, 0), 1)))
	}
	parts = append(parts, progressStats.Render(fmt.Sprintf("batch %s · %s/s",
		humanize.Comma(int64(batch)), humanize.FtoaWithDigits(p.rate(), 1))))
	return strings.Join(parts, " ")
}

func (p *Progress) summary(epoch int) string {
	return progressLabel.Render(fmt.Sprintf("epoch %d", epoch)) + " " +
		progressStats.Render(fmt.Sprintf("%s batches in %s",
			humanize.Comma(int64(p.batches)), time.Since(p.started).Round(time.Millisecond)))
}

func (p *Progress) rate() float64 {
	elapsed := time.Since(p.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.batches) / elapsed
}

var _ plugin.Plugin = (*Progress)(nil)
