package cli

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Release builds set these with -ldflags "-X github.com/ynput/ayonfixt/internal/cli.version=...".
// Left empty, commit and date come from the VCS stamp of 'go install'.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

type buildDetails struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

func currentBuild() buildDetails {
	b := buildDetails{Version: version, Commit: commit, Date: date}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	return b.fill(info)
}

// fill completes what ldflags left unset from the binary's build info
func (b buildDetails) fill(info *debug.BuildInfo) buildDetails {
	b.GoVersion = info.GoVersion
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		}
	}
	return b
}

func (b buildDetails) write(w io.Writer, verbose bool) {
	v := b.Version
	if v != "dev" && v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	fmt.Fprintf(w, "ayonfixt version %s", v)
	if b.Commit != "" {
		c := b.Commit
		if len(c) > 12 {
			c = c[:12]
		}
		fmt.Fprintf(w, " (commit: %s", c)
		if b.Date != "" {
			fmt.Fprintf(w, ", built: %s", b.Date)
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
	if verbose && b.GoVersion != "" {
		fmt.Fprintf(w, "go: %s\n", b.GoVersion)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the ayonfixt version, the commit it was built from and, with --verbose, the Go toolchain",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		currentBuild().write(cmd.OutOrStdout(), verbose)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
