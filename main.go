package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/Piebald-AI/tweakcc-sub001/common"
	"github.com/Piebald-AI/tweakcc-sub001/elfrw"
	"github.com/Piebald-AI/tweakcc-sub001/jspatch"
	"github.com/Piebald-AI/tweakcc-sub001/machorw"
	"github.com/Piebald-AI/tweakcc-sub001/payload"
	"github.com/Piebald-AI/tweakcc-sub001/perw"
)

var (
	verbose         bool
	outputPath      string
	modulesDir      string
	settingsPath    string
	allowTruncation bool
)

// extractAny detects the container format and dispatches to the matching
// extractor.
func extractAny(path string) (*payload.Extraction, error) {
	format, err := common.DetectBinaryFormat(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("detected %s container", format)

	switch format {
	case common.FormatMachO:
		return machorw.Extract(path)
	case common.FormatPE:
		return perw.Extract(path)
	case common.FormatELF:
		return elfrw.Extract(path)
	default:
		return nil, common.ErrUnknownFormat
	}
}

func repackAny(inPath, outPath string, ext *payload.Extraction, rebuilt *payload.RebuildResult) (*common.OperationResult, error) {
	switch ext.Format {
	case common.FormatMachO:
		return machorw.Repack(inPath, outPath, rebuilt, machorw.Options{AllowTruncation: allowTruncation})
	case common.FormatPE:
		return perw.Repack(inPath, outPath, rebuilt)
	case common.FormatELF:
		return elfrw.Repack(inPath, outPath, rebuilt)
	default:
		return nil, common.ErrUnknownFormat
	}
}

func printResult(result *common.OperationResult) {
	if result.Applied {
		log.Infof("%s", result)
	} else {
		log.Warnf("%s", result)
	}
	for _, warning := range result.Warnings {
		log.Warnf("%s: %s", result.Name, warning)
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Show the embedded module graph of an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := extractAny(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("format:      %s\n", ext.Format)
			fmt.Printf("payload:     %d bytes\n", len(ext.Payload))
			fmt.Printf("modules:     %d\n", len(ext.Modules))
			fmt.Printf("entry point: %d\n", ext.Header.EntryPointID)
			fmt.Printf("base prefix: %s\n", ext.BasePrefix)
			for i, mod := range ext.Modules {
				name, err := ext.FileName(mod)
				if err != nil {
					return err
				}
				mark := " "
				if uint32(i) == ext.Header.EntryPointID {
					mark = "*"
				}
				fmt.Printf("  %s %-40s %d bytes (loader %d)\n", mark, name, mod.Contents.Length, mod.Loader)
			}
			return nil
		},
	}
}

func unpackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack FILE",
		Short: "Write every embedded module to a directory for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := extractAny(args[0])
			if err != nil {
				return err
			}
			written, err := payload.UnpackModules(ext, outputPath)
			if err != nil {
				return err
			}
			log.Infof("wrote %d modules to %s", written, outputPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "out", "o", "modules", "output directory")
	return cmd
}

func repackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repack FILE",
		Short: "Rebuild the payload with edited modules and write a new executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return fmt.Errorf("an output path is required; the input file is never modified")
			}
			ext, err := extractAny(args[0])
			if err != nil {
				return err
			}
			replacements, err := payload.LoadReplacements(modulesDir)
			if err != nil {
				return err
			}
			rebuilt, err := payload.Rebuild(ext, replacements)
			if err != nil {
				return err
			}
			log.Debugf("rebuilt payload: %d bytes, %d modules replaced", len(rebuilt.Payload), rebuilt.Replaced)

			result, err := repackAny(args[0], outputPath, ext, rebuilt)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "output executable path (required)")
	cmd.Flags().StringVarP(&modulesDir, "dir", "d", "modules", "directory of edited modules")
	cmd.Flags().BoolVar(&allowTruncation, "allow-truncation", false,
		"write Mach-O output even when the payload no longer fits (drops data)")
	return cmd
}

func patchJSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch-js BUNDLE",
		Short: "Apply configured patches to a minified bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := jspatch.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			data, err := common.ReadFile(args[0])
			if err != nil {
				return err
			}

			patched, results := jspatch.ApplyAll(string(data), settings)
			applied := 0
			for _, result := range results {
				printResult(result)
				if result.Applied {
					applied++
				}
			}
			if applied == 0 {
				log.Warn("no patches applied; output not written")
				return nil
			}

			out := outputPath
			if out == "" {
				out = args[0] + ".patched"
			}
			if err := os.WriteFile(out, []byte(patched), 0o644); err != nil {
				return fmt.Errorf("failed to write patched bundle: %w", err)
			}
			log.Infof("applied %d/%d patches, wrote %s", applied, len(results), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&settingsPath, "settings", "c", "settings.yaml", "patch settings file")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "output path (default: BUNDLE.patched)")
	return cmd
}

func main() {
	log.SetHandler(cli.New(os.Stderr))

	root := &cobra.Command{
		Use:           "tweakcc",
		Short:         "Rewrite the embedded module graph and bundled code of compiled executables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	root.AddCommand(infoCmd(), unpackCmd(), repackCmd(), patchJSCmd())

	if err := root.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
