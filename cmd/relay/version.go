package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%FT%TZ)" ./cmd/relay
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuild()
		if versionShort {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return err
		}
		printBuild(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version")
}

type buildInfo struct {
	Version   string
	Commit    string
	Modified  bool
	BuildDate string
	GoVersion string
	Platform  string
}

// currentBuild prefers values injected with -ldflags and fills the gaps from
// the VCS stamps the Go toolchain embeds.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	if len(info.Commit) > 12 {
		info.Commit = info.Commit[:12]
	}
	return info
}

func printBuild(w io.Writer, info buildInfo) {
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))

	commit := orUnknown(info.Commit)
	if info.Modified {
		commit += " (modified)"
	}

	fmt.Fprintln(w, titleStyle.Render("relay"))
	fmt.Fprintln(w)
	for _, row := range [][2]string{
		{"Version:", info.Version},
		{"Commit:", commit},
		{"Built:", orUnknown(info.BuildDate)},
		{"Go:", info.GoVersion},
		{"Platform:", info.Platform},
	} {
		fmt.Fprintf(w, "%-10s %s\n", labelStyle.Render(row[0]), valueStyle.Render(row[1]))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
