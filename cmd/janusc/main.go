// Command janusc drives the dispatch core over a declarative compilation
// unit (pkg/batch), standing in for the out-of-scope parser/driver that
// would otherwise feed the core incrementally (§1, §6). It is structured
// the way the teacher's cmd/glyph is: a cobra root command with one
// subcommand per pipeline entry point, colored status output via
// fatih/color.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func printInfo(msg string)    { infoColor.Printf("[INFO] %s\n", msg) }
func printSuccess(msg string) { successColor.Printf("[OK] %s\n", msg) }
func printWarning(msg string) { warningColor.Printf("[WARN] %s\n", msg) }
func printError(err error)    { errorColor.Printf("[ERROR] %s\n", err.Error()) }

func main() {
	rootCmd := &cobra.Command{
		Use:     "janusc",
		Short:   "Multiple-dispatch resolution and table-generation core",
		Long:    "janusc exercises the janus dispatch core's registry, resolver, table generator, runtime engine, optimizer, and diagnostic engine over a declarative compilation-unit file.",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (defaults are used if omitted)")
	rootCmd.PersistentFlags().String("unit", "", "path to the compilation-unit YAML file (pkg/batch.Document)")
	rootCmd.MarkPersistentFlagRequired("unit")

	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newTableCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

