package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
)

// cliFlags holds pointers to every flag. A nil pointer means the flag is not
// registered for the parsed command.
type cliFlags struct {
	// Global
	LogLevel *string
	Quiet    *bool
	Exclude  *string
	Config   *string

	// index
	Root             *string
	Out              *string
	CompressionLevel *string

	// compare / sync
	Left      *string
	Right     *string
	Policy    *string
	Ungrouped *bool

	// sync
	DryRun         *bool
	CopyMode       *string
	BufferSizeKB   *int
	FailFast       *bool
	PreSyncHooks   *string
	PostSyncHooks  *string
	RequireMounted *bool

	// init
	Base  *string
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'info', 'notice', 'warn', 'error'.")
	f.Quiet = fs.Bool("quiet", false, "Only log warnings and errors.")
	f.Exclude = fs.String("exclude", "", "Comma-separated list of case-insensitive patterns to exclude (supports ** globs).")
	f.Config = fs.String("config", "", "Directory containing a "+buildinfo.CommandName+".config.json file.")
}

func registerIndexFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Root = fs.String("root", "", "Directory to index. (Required)")
	f.Out = fs.String("out", "", "Index file to write; '.gz' or '.zst' enables compression. (Required)")
	f.CompressionLevel = fs.String("compression-level", "", "Compression level: 'default', 'fastest', 'better', 'best'.")
}

func registerCompareFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Left = fs.String("left", "", "Left directory or index file. (Required)")
	f.Right = fs.String("right", "", "Right directory or index file. (Required)")
	f.Policy = fs.String("policy", "", "Preview the actions of a policy: 'none', 'left', 'right', 'newer'.")
	f.Ungrouped = fs.Bool("ungrouped", false, "List differences without grouping moved entries.")
}

func registerSyncFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Left = fs.String("left", "", "Left directory. (Required)")
	f.Right = fs.String("right", "", "Right directory. (Required)")
	f.Policy = fs.String("policy", "", "How differences are resolved: 'none', 'left', 'right', 'newer'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.CopyMode = fs.String("copy-mode", "", "File copy mode: 'safe' (temporary file and rename) or 'direct'.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for file copies.")
	f.FailFast = fs.Bool("fail-fast", false, "Abort when a hook command fails.")
	f.PreSyncHooks = fs.String("pre-sync-hooks", "", "Comma-separated list of commands to run before the sync.")
	f.PostSyncHooks = fs.String("post-sync-hooks", "", "Comma-separated list of commands to run after the sync.")
	f.RequireMounted = fs.Bool("require-mounted", false, "Refuse roots that are on the system disk.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Base = fs.String("base", "", "Directory to write the configuration file to. (Required)")
	f.Force = fs.Bool("force", false, "Overwrite an existing configuration file.")
	f.Policy = fs.String("policy", "", "Default policy for sync runs.")
	f.CopyMode = fs.String("copy-mode", "", "Default file copy mode.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Default I/O buffer size in kilobytes.")
	f.CompressionLevel = fs.String("compression-level", "", "Default compression level for index files.")
	f.PreSyncHooks = fs.String("pre-sync-hooks", "", "Comma-separated list of commands to run before each sync.")
	f.PostSyncHooks = fs.String("post-sync-hooks", "", "Comma-separated list of commands to run after each sync.")
}

var descriptions = map[Command]string{
	Index:   "Scan a directory tree and save it as an index file.",
	Compare: "Compare two directory trees or index files and list their differences.",
	Sync:    "Compare two directory trees and resolve their differences on disk.",
	Init:    "Write a default configuration file.",
}

// Parse parses args (usually os.Args[1:]) and returns the command and the
// flags the user set explicitly.
func Parse(args []string) (Command, map[string]any, error) {
	if len(args) == 0 {
		printTopLevelUsage(flag.NewFlagSet("main", flag.ContinueOnError))
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])
	switch cmdStr {
	case "help", "-h", "-help", "--help":
		printTopLevelUsage(flag.NewFlagSet("main", flag.ContinueOnError))
		return None, nil, nil
	}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}
	if command == Version {
		return command, nil, nil
	}

	f := &cliFlags{}
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	registerGlobalFlags(fs, f)
	switch command {
	case Index:
		registerIndexFlags(fs, f)
	case Compare:
		registerCompareFlags(fs, f)
	case Sync:
		registerSyncFlags(fs, f)
	case Init:
		registerInitFlags(fs, f)
	}
	fs.Usage = func() {
		printSubcommandUsage(command, descriptions[command], fs)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return command, nil, err
	}
	if fs.NArg() > 0 {
		return command, nil, fmt.Errorf("unexpected arguments for %s: %s", command, strings.Join(fs.Args(), " "))
	}
	return command, flagsToMap(fs, f), nil
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) map[string]any {
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "quiet", f.Quiet)
	addIfUsed(flagMap, usedFlags, "config", f.Config)

	addIfUsed(flagMap, usedFlags, "root", f.Root)
	addIfUsed(flagMap, usedFlags, "out", f.Out)
	addIfUsed(flagMap, usedFlags, "compression-level", f.CompressionLevel)

	addIfUsed(flagMap, usedFlags, "left", f.Left)
	addIfUsed(flagMap, usedFlags, "right", f.Right)
	addIfUsed(flagMap, usedFlags, "policy", f.Policy)
	addIfUsed(flagMap, usedFlags, "ungrouped", f.Ungrouped)

	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "copy-mode", f.CopyMode)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", f.BufferSizeKB)
	addIfUsed(flagMap, usedFlags, "fail-fast", f.FailFast)
	addIfUsed(flagMap, usedFlags, "require-mounted", f.RequireMounted)

	addIfUsed(flagMap, usedFlags, "base", f.Base)
	addIfUsed(flagMap, usedFlags, "force", f.Force)

	addParsedIfUsed(flagMap, usedFlags, "exclude", f.Exclude, ParseExcludeList)
	addParsedIfUsed(flagMap, usedFlags, "pre-sync-hooks", f.PreSyncHooks, ParseCmdList)
	addParsedIfUsed(flagMap, usedFlags, "post-sync-hooks", f.PostSyncHooks, ParseCmdList)

	return flagMap
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addParsedIfUsed adds the parsed value of ptr to flagMap if ptr is not nil and the flag was set.
func addParsedIfUsed(flagMap map[string]any, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

func printTopLevelUsage(fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	out := fs.Output()
	fmt.Fprintf(out, "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(out, "Compare and synchronize two directory trees.\n\n")
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  index       %s\n", descriptions[Index])
	fmt.Fprintf(out, "  compare     %s\n", descriptions[Compare])
	fmt.Fprintf(out, "  sync        %s\n", descriptions[Sync])
	fmt.Fprintf(out, "  init        %s\n", descriptions[Init])
	fmt.Fprintf(out, "  version     Print the application version\n")
	fmt.Fprintf(out, "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	out := fs.Output()
	fmt.Fprintf(out, "%s(%s)\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(out, "Usage: %s %s [flags]\n\n", execName, command)
	fmt.Fprintf(out, "%s\n\n", desc)
	fmt.Fprintf(out, "Flags:\n")
	fs.PrintDefaults()
}

// ParseCmdList parses a comma-separated list of shell commands. Quotes and
// backslash escapes are kept for the shell.
func ParseCmdList(s string) []string {
	return parseList(s, true, true)
}

// ParseExcludeList parses a comma-separated list of patterns. Quotes only
// group items and are removed; backslashes are literal.
func ParseExcludeList(s string) []string {
	return parseList(s, false, false)
}

// parseList splits s on commas outside of single or double quotes and trims
// each item. Empty items are dropped.
func parseList(s string, keepQuotes, handleEscapes bool) []string {
	var list []string
	var current strings.Builder
	var quoteChar rune
	var escaped bool

	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			list = append(list, item)
		}
		current.Reset()
	}

	for _, r := range s {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case r == '\\' && handleEscapes:
			escaped = true
			current.WriteRune(r)
		case r == '\'' || r == '"':
			switch quoteChar {
			case 0:
				quoteChar = r
			case r:
				quoteChar = 0
			default:
				current.WriteRune(r)
				continue
			}
			if keepQuotes {
				current.WriteRune(r)
			}
		case r == ',' && quoteChar == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return list
}
