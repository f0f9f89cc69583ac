package cli

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// fileProgress draws one bar per source file read by the importers.
type fileProgress struct {
	mu   sync.Mutex
	p    *mpb.Progress
	bars map[string]*mpb.Bar
}

func newFileProgress(w io.Writer) *fileProgress {
	return &fileProgress{
		p:    mpb.New(mpb.WithOutput(w), mpb.WithWidth(48)),
		bars: make(map[string]*mpb.Bar),
	}
}

// Update is an importer.ProgressFunc. A file read again after its bar
// completed gets a new bar.
func (fp *fileProgress) Update(file string, done, total int64) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	bar, ok := fp.bars[file]
	if !ok || bar.Completed() {
		bar = fp.addBar(filepath.Base(file), total)
		fp.bars[file] = bar
	}
	bar.SetCurrent(done)
	if total > 0 && done >= total {
		bar.SetTotal(total, true)
		delete(fp.bars, file)
	}
}

func (fp *fileProgress) addBar(name string, total int64) *mpb.Bar {
	return fp.p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d lines", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_MMSS, decor.WC{W: 6}), "done"),
			decor.NewPercentage("% .1f", decor.WC{W: 7}),
		),
	)
}

// Wait completes the bars still open at their current count and waits for
// the last render. With aborted set they are dropped instead.
func (fp *fileProgress) Wait(aborted bool) {
	fp.mu.Lock()
	for file, bar := range fp.bars {
		if aborted {
			bar.Abort(false)
		} else {
			bar.SetTotal(-1, true)
		}
		delete(fp.bars, file)
	}
	fp.mu.Unlock()
	fp.p.Wait()
}
