package transcript

import (
	"fmt"
	"io"
	"time"
)

// ProgressTimeLayout prefixes every status line
const ProgressTimeLayout = "2006-01-02 15:04:05"

// Progress prints human-readable status lines at phase boundaries
type Progress struct {
	out io.Writer
	now func() time.Time
}

// NewProgress creates a reporter writing to out
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out, now: time.Now}
}

// WithClock replaces the wall clock, for tests
func (p *Progress) WithClock(now func() time.Time) *Progress {
	p.now = now
	return p
}

// Printf writes one timestamped status line
func (p *Progress) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.now().Format(ProgressTimeLayout), fmt.Sprintf(format, args...))
}

// CreatingPipeline reports backend construction
func (p *Progress) CreatingPipeline(device, modelDir string) {
	p.Printf("Creating pipeline on %s with models from %s...", device, modelDir)
}

// ReadingAudio reports the start of audio decoding
func (p *Progress) ReadingAudio(path string) {
	p.Printf("Reading audio file %s...", path)
}

// Generating reports the start of the chunk loop
func (p *Progress) Generating() {
	p.Printf("Generating text from speech...")
}

// Done reports the end of the run
func (p *Progress) Done() {
	p.Printf("Transcribing done.")
}
