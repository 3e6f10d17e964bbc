package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/21prnv/InfluenceIq/internal/engine"
)

// Progress renders a run's navigation on a terminal. It implements
// engine.Observer.
type Progress struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

var _ engine.Observer = (*Progress)(nil)

func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

func (p *Progress) OnState(account string, state engine.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch state {
	case engine.StateMediaIndexLoaded:
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(fmt.Sprintf("%s media", account)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
		)
	case engine.StateDone, engine.StateLoginWallDetected:
		if p.bar != nil {
			_ = p.bar.Finish()
			p.bar = nil
		}
	case engine.StateMediaItemLoaded:
	default:
		fmt.Fprintf(p.out, "%s %s\n", Info("›"), describe(account, state))
	}
}

func (p *Progress) OnItem(account string, index, total int, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.ChangeMax(total)
	_ = p.bar.Set(index)
}

func describe(account string, state engine.State) string {
	switch state {
	case engine.StateStart:
		return "Starting " + account
	case engine.StateSessionReady:
		return "Session ready"
	case engine.StateProfileLoaded:
		return "Profile loaded"
	}
	return string(state)
}
