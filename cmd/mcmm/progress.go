package main

import (
	"fmt"
	"io"
	"sync"

	"mcmm/internal/core"
	"mcmm/internal/domain"

	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
)

// progressObserver prints resolution outcomes as they arrive and shows one
// byte counter per download. Bars are only drawn while downloads run so
// plain lines never interleave with them.
type progressObserver struct {
	out io.Writer

	mu       sync.Mutex
	progress *mpb.Progress
	bars     map[*domain.DownloadData]*downloadBar
	deferred []string
}

type downloadBar struct {
	bar  *mpb.Bar
	seen int64
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{
		out:  out,
		bars: make(map[*domain.DownloadData]*downloadBar),
	}
}

func (o *progressObserver) Resolved(outcome core.Outcome) {
	o.println(formatOutcome(outcome))
}

func (o *progressObserver) DownloadStarted(data *domain.DownloadData) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.progress == nil {
		o.progress = mpb.New(mpb.WithOutput(o.out), mpb.WithWidth(40))
	}
	name := data.Output
	bar := o.progress.AddBar(data.Length,
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight})),
		mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
	)
	o.bars[data] = &downloadBar{bar: bar}
}

func (o *progressObserver) DownloadProgress(data *domain.DownloadData, downloaded, total int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bars[data]
	if !ok {
		return
	}
	if total > 0 && total != data.Length {
		b.bar.SetTotal(total, false)
	}
	switch delta := downloaded - b.seen; {
	case delta > 0:
		b.bar.IncrBy(int(delta))
	case delta < 0:
		// a retry starts from zero again
		b.bar.SetCurrent(downloaded)
	}
	b.seen = downloaded
}

func (o *progressObserver) DownloadFinished(data *domain.DownloadData, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bars[data]
	if !ok {
		return
	}
	delete(o.bars, data)
	if err != nil {
		b.bar.Abort(false)
		o.deferred = append(o.deferred, fmt.Sprintf("%s %s: %v", colorRed("✗"), data.Output, err))
		return
	}
	b.bar.SetTotal(b.seen, true)
}

func (o *progressObserver) Installed(inst *domain.InstallData, err error) {
	o.wait()
	if err != nil {
		o.println(fmt.Sprintf("%s %s: %v", colorRed("✗"), inst.Dest, err))
		return
	}
	o.println(fmt.Sprintf("%s installed %s", colorGreen("✓"), inst.Dest))
}

func (o *progressObserver) Warn(msg string) {
	o.println(colorYellow("warning: " + msg))
}

// println writes a line now, or after the bars when downloads are running
func (o *progressObserver) println(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.progress != nil {
		o.deferred = append(o.deferred, line)
		return
	}
	fmt.Fprintln(o.out, line)
}

// wait finishes the bars and flushes lines held back while they were drawn.
// Every started download must have finished.
func (o *progressObserver) wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.progress == nil {
		return
	}
	for data, b := range o.bars {
		b.bar.Abort(false)
		delete(o.bars, data)
	}
	o.progress.Wait()
	o.progress = nil
	for _, line := range o.deferred {
		fmt.Fprintln(o.out, line)
	}
	o.deferred = nil
}

// formatOutcome renders one resolution outcome as a status line
func formatOutcome(outcome core.Outcome) string {
	if outcome.Err == nil {
		return fmt.Sprintf("%s %s %s", colorGreen("✓"), outcome.Name, colorDim(outcome.Data.Filename()))
	}
	var reason string
	switch outcome.Failure() {
	case domain.FailureNoCompatibleVersion:
		reason = "no compatible file"
	case domain.FailureNotFound:
		reason = "not found"
	case domain.FailureDistributionDenied:
		reason = "third-party downloads disabled by the author"
	case domain.FailureRateLimited:
		reason = "rate limited"
	default:
		reason = outcome.Err.Error()
	}
	return fmt.Sprintf("%s %s: %s", colorRed("✗"), outcome.Name, reason)
}
