package progress

import (
	"fmt"
	"io"

	"github.com/harness/fetch-artifact/util/common"

	"github.com/pterm/pterm"
)

type BarWriter struct {
	bar *pterm.ProgressbarPrinter
}

func (w *BarWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.bar.Add(n)
	return n, nil
}

// Reader tees every byte read from reader into a progress bar written to out.
// The returned func stops the bar. With an unknown contentLength (<= 0) the
// bar only shows the running count.
func Reader(contentLength int64, reader io.Reader, saveFilename string, out io.Writer) (io.Reader, func()) {
	title := saveFilename
	if contentLength > 0 {
		title = fmt.Sprintf("%s (%s)", saveFilename, common.GetSize(contentLength))
	}
	bar := pterm.DefaultProgressbar.
		WithTitle(title).
		WithRemoveWhenDone(false).
		WithWriter(out)

	if contentLength > 0 {
		bar = bar.WithTotal(int(contentLength))
	} else {
		bar = bar.WithShowCount(true).WithShowPercentage(false)
	}

	pb, err := bar.Start()
	if err != nil {
		return reader, func() {}
	}

	r := io.TeeReader(reader, &BarWriter{pb})
	return r, func() { _, _ = pb.Stop() }
}
