package pagination

import (
	"fmt"
	"io"
)

// writerState tracks progress of the aggregate array.
type writerState int

const (
	stateNotStarted writerState = iota
	stateOpened
	stateClosed
)

const documentSeparator = ", "

// arrayWriter streams documents into a JSON array on w.
type arrayWriter struct {
	w         io.Writer
	state     writerState
	documents int
}

func newArrayWriter(w io.Writer) *arrayWriter {
	return &arrayWriter{w: w}
}

func (a *arrayWriter) open() error {
	if a.state != stateNotStarted {
		return fmt.Errorf("array already opened")
	}
	if _, err := io.WriteString(a.w, "["); err != nil {
		return fmt.Errorf("write array start: %w", err)
	}
	a.state = stateOpened
	return nil
}

// writeDocuments appends docs, separating them from everything written before.
func (a *arrayWriter) writeDocuments(docs []string) error {
	if a.state != stateOpened {
		return fmt.Errorf("array not open")
	}
	for _, doc := range docs {
		if a.documents > 0 {
			if _, err := io.WriteString(a.w, documentSeparator); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		if _, err := io.WriteString(a.w, doc); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		a.documents++
	}
	return nil
}

func (a *arrayWriter) close() error {
	if a.state != stateOpened {
		return fmt.Errorf("array not open")
	}
	if _, err := io.WriteString(a.w, "]"); err != nil {
		return fmt.Errorf("write array end: %w", err)
	}
	a.state = stateClosed
	return nil
}
