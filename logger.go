package lagonlike

import (
	"bytes"
	"io"
	"os"
)

// logTarget is a named log endpoint a guest can write to.
type logTarget struct {
	name string
	w    io.Writer
}

func (l logTarget) Write(data []byte) (int, error) {
	return l.w.Write(data)
}

func (i *Instance) addLogTarget(name string, w io.Writer) {
	i.logTargets = append(i.logTargets, logTarget{name, w})
}

// getLogTargetHandle resolves a named endpoint to its handle, creating
// one from the default endpoint factory when the name is unknown.
func (i *Instance) getLogTargetHandle(name string) int {
	for j, l := range i.logTargets {
		if l.name == name {
			return j
		}
	}

	factory := i.defaultLog
	if factory == nil {
		factory = defaultLogTarget
	}
	i.addLogTarget(name, factory(name))
	return len(i.logTargets) - 1
}

func (i *Instance) getLogTarget(handle int) io.Writer {
	if handle < 0 || handle > len(i.logTargets)-1 {
		return nil
	}
	return i.logTargets[handle]
}

func defaultLogTarget(name string) io.Writer {
	return NewPrefixWriter(name, LineWriter{os.Stdout})
}

// LineWriter wraps a writer so that every Write ends with exactly one
// newline, with any interior newlines escaped. Keeps multi-line guest
// messages from splitting a log stream.
type LineWriter struct{ io.Writer }

// Write implements io.Writer for LineWriter.
func (lw LineWriter) Write(data []byte) (int, error) {
	l := len(data)
	data = bytes.TrimRight(data, "\n")
	data = bytes.ReplaceAll(data, []byte("\n"), []byte("\\n"))
	if n, err := lw.Writer.Write(data); err != nil {
		return n, err
	}

	if n, err := lw.Writer.Write([]byte("\n")); err != nil {
		return n, err
	} else {
		// report the length of the original bytes on success
		return l, err
	}
}

// PrefixWriter prepends a fixed prefix to every Write.
type PrefixWriter struct {
	io.Writer
	prefix string
}

func (w *PrefixWriter) Write(data []byte) (int, error) {
	l := len(data)
	msg := make([]byte, 0, len(w.prefix)+2+len(data))
	msg = append(msg, []byte(w.prefix+": ")...)
	msg = append(msg, data...)

	if n, err := w.Writer.Write(msg); err != nil {
		return n, err
	}

	return l, nil
}

// NewPrefixWriter returns a PrefixWriter writing prefix-tagged lines
// to w.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{Writer: w, prefix: prefix}
}
