package evaluate

import "go.uber.org/multierr"

// Tee writes every row to all sinks. A failing sink does not stop the others;
// their errors are combined.
func Tee(sinks ...RowSink) RowSink {
	return tee(sinks)
}

type tee []RowSink

func (t tee) Write(row any) error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, s.Write(row))
	}
	return err
}

// Discard accepts and drops every row.
var Discard RowSink = discard{}

type discard struct{}

func (discard) Write(any) error { return nil }
