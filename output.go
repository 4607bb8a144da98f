package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sksouk/phajay-file-backup/sync"
)

func printStatus(w io.Writer, st *sync.Status, loc *time.Location) {
	lastSync := "never"
	if st.LastSync != nil {
		lastSync = st.LastSync.In(loc).Format(time.RFC3339)
	}
	fmt.Fprintln(w, "Backup status")
	fmt.Fprintf(w, "  Last sync:        %s\n", lastSync)
	fmt.Fprintf(w, "  Remote objects:   %d\n", st.TotalRemote)
	fmt.Fprintf(w, "  Downloaded:       %d\n", st.TotalDownloaded)
	fmt.Fprintf(w, "  Pending:          %d\n", st.Pending)
	fmt.Fprintf(w, "  Local path:       %s\n", st.LocalRoot)
}

func printResult(w io.Writer, res *sync.Result) {
	switch {
	case res.NoOp:
		fmt.Fprintf(w, "Nothing to download, %d objects up to date (%s)\n", res.TotalObjects, res.Duration.Round(time.Millisecond))
		return
	case res.DryRun:
		fmt.Fprintf(w, "Dry run: %d new, %d missing locally\n", res.NewFiles, res.MissingLocalFiles)
		for _, c := range res.Candidates {
			fmt.Fprintf(w, "  %-13s %s -> %s\n", c.Reason, c.Object.Key, c.LocalPath)
		}
		return
	}

	fmt.Fprintf(w, "Backup finished in %s: %d downloaded (%d bytes), %d failed, %d skipped\n",
		res.Duration.Round(time.Millisecond), res.Fetched, res.BytesFetched, len(res.Failed), len(res.Skipped))
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  failed  %s: %v\n", f.Key, f.Err)
	}
	if res.SaveErr != nil {
		fmt.Fprintf(w, "  warning: manifest not saved: %v\n", res.SaveErr)
	}
}
