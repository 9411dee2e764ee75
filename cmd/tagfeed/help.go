// ABOUTME: Help display for the tagfeed CLI with grouped flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for reporting which TAGFEED_* variables are set.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes usage, flags, examples, and environment status to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "tagfeed %s: a Mastodon hashtag timeline\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tagfeed [-bind addr] [-data-dir dir]   Serve the timeline and run the workers")
	fmt.Fprintln(w, "  tagfeed -approve <hashtag>             Approve a suggested hashtag")
	fmt.Fprintln(w, "  tagfeed -popular-tags                  Print the most used tags")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -bind <addr>          Listen address (default: 127.0.0.1:1337)")
	fmt.Fprintln(w, "  -data-dir <dir>       Status files and index (default: ~/.local/share/tagfeed)")
	fmt.Fprintln(w, "  -settings <file>      Settings YAML (default: <data-dir>/settings.yaml)")
	fmt.Fprintln(w, "  -approve <hashtag>    Approve a suggested hashtag and exit")
	fmt.Fprintln(w, "  -popular-tags         Print popular tags for the last 7 and 30 days and exit")
	fmt.Fprintln(w, "  -verbose              Debug logging")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  tagfeed -verbose")
	fmt.Fprintln(w, "  tagfeed -approve minipainting")
	fmt.Fprintln(w, "  TAGFEED_INSTANCE_URL=https://mastodon.social tagfeed -bind 127.0.0.1:8080")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, key := range []string{"TAGFEED_BIND", "TAGFEED_DATA_DIR", "TAGFEED_INSTANCE_URL", "TAGFEED_SETTINGS", "TAGFEED_ALLOW_REMOTE"} {
		fmt.Fprintf(w, "  %-22s%s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Variables are also read from ./.env without overriding the environment.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
