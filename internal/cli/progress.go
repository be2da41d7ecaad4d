package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
)

// BlockProgress renders fuzzy-tier block scoring as a progress bar.
type BlockProgress struct {
	writer  io.Writer
	bar     *progressbar.ProgressBar
	resumed int
	scored  int
}

// NewBlockProgress creates a progress reporter writing to w (stderr when nil).
func NewBlockProgress(w io.Writer) *BlockProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BlockProgress{writer: w}
}

// Start begins a bar over total blocks.
func (p *BlockProgress) Start(total int) {
	p.resumed, p.scored = 0, 0
	p.bar = nil
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scoring blocks...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Advance records one finished block.
func (p *BlockProgress) Advance(blockKey string, resumed bool) {
	if resumed {
		p.resumed++
	} else {
		p.scored++
	}
	slog.Debug("Block finished", "block", blockKey, "resumed", resumed)
	if p.bar == nil {
		return
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar.
func (p *BlockProgress) Finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Counts returns how many blocks were scored and how many were resumed.
func (p *BlockProgress) Counts() (scored, resumed int) {
	return p.scored, p.resumed
}
