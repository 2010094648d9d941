package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders the summary as an aligned table followed by the
// failed tasks, if any.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Download Summary:")
	fmt.Fprintf(tw, "  Downloaded:\t%d\n", s.Fetched)
	fmt.Fprintf(tw, "  Force-refreshed:\t%d\n", s.ForceRefreshed)
	fmt.Fprintf(tw, "  Skipped (already valid):\t%d\n", s.Skipped)
	fmt.Fprintf(tw, "  Failed:\t%d\n", s.Failed)
	fmt.Fprintf(tw, "  Total:\t%d\n", s.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Failures) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tCLASS\tREASON")
	for _, f := range s.Failures {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Destination, f.Class, f.Reason)
	}
	return tw.Flush()
}

// WriteJSON renders the summary as indented JSON.
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
