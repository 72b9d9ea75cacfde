package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

type versionReport struct {
	Binary    string `json:"binary"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func newVersionReport(binary string, extended bool) versionReport {
	report := versionReport{Binary: binary, Version: versionInfo.Version}
	if extended {
		report.Commit = versionInfo.Commit
		report.BuildDate = versionInfo.BuildDate
		report.Go = runtime.Version()
		libs := crucible.GetVersion()
		report.Gofulmen = libs.Gofulmen
		report.Crucible = libs.Crucible
	}
	return report
}

func (v versionReport) write(w io.Writer, asJSON bool) error {
	if asJSON {
		return writeIndentedJSON(w, v)
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", v.Binary, v.Version); err != nil {
		return err
	}
	if v.Go == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "Commit: %s\nBuilt: %s\nGo: %s\n\nGofulmen: %s\nCrucible: %s\n",
		v.Commit, v.BuildDate, v.Go, v.Gofulmen, v.Crucible)
	return err
}

func newVersionCmd() *cobra.Command {
	var extended, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information. Use --extended for build, Go and library versions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			binary := rootCmd.Use
			if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
				binary = identity.BinaryName
			}
			return newVersionReport(binary, extended).write(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
