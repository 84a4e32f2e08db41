// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command and global flag parsing for secureai.

package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdImage
	CmdStep
	CmdChat
	CmdUpload
	CmdFiles
	CmdDelete
	CmdRebuildIndex
	CmdProjects
	CmdProject
	CmdInstructions
	CmdStats
	CmdSettings
	CmdConfig
	CmdServe
	CmdVersion
	CmdHelp
	CmdUnknown
)

// commandNames maps every accepted spelling to its command.
var commandNames = map[string]Command{
	"tui":           CmdTUI,
	"ask":           CmdAsk,
	"image":         CmdImage,
	"analyze":       CmdImage,
	"step":          CmdStep,
	"run-step":      CmdStep,
	"chat":          CmdChat,
	"upload":        CmdUpload,
	"files":         CmdFiles,
	"ls":            CmdFiles,
	"delete":        CmdDelete,
	"rm":            CmdDelete,
	"rebuild-index": CmdRebuildIndex,
	"reindex":       CmdRebuildIndex,
	"projects":      CmdProjects,
	"project":       CmdProject,
	"instructions":  CmdInstructions,
	"stats":         CmdStats,
	"settings":      CmdSettings,
	"config":        CmdConfig,
	"serve":         CmdServe,
	"version":       CmdVersion,
	"--version":     CmdVersion,
	"help":          CmdHelp,
	"-h":            CmdHelp,
	"--help":        CmdHelp,
}

// String returns the canonical command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdImage:
		return "image"
	case CmdStep:
		return "step"
	case CmdChat:
		return "chat"
	case CmdUpload:
		return "upload"
	case CmdFiles:
		return "files"
	case CmdDelete:
		return "delete"
	case CmdRebuildIndex:
		return "rebuild-index"
	case CmdProjects:
		return "projects"
	case CmdProject:
		return "project"
	case CmdInstructions:
		return "instructions"
	case CmdStats:
		return "stats"
	case CmdSettings:
		return "settings"
	case CmdConfig:
		return "config"
	case CmdServe:
		return "serve"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool   // machine-readable output
	Quiet      bool   // no progress or notices
	Verbose    bool   // request logging to stderr
	NoMarkdown bool   // print answers as plain text
	Model      string // overrides the settings default model
	ConfigFile string // alternate config.toml / config.json

	// Name is the command as typed, kept for suggestions.
	Name string

	// Raw holds the command arguments left after global flags.
	Raw []string
}

const usageText = `secureai - terminal client for the SecureAI document assistant

Usage:
  secureai                          Start the TUI (default)
  secureai ask "question"           Ask a question, streaming the answer
    -f, --file <path>                 Attach a document or image
  secureai image <path> [prompt]    Describe an image
  secureai chat                     Interactive prompt loop
  secureai upload <path>...         Upload documents to the library
  secureai files [--folder f]       List uploaded files (files, rag, images)
  secureai delete <name> [--folder f] [--confirm]
  secureai rebuild-index            Rebuild the document index
  secureai projects                 List projects
  secureai project create <name>
  secureai project show <slug>
  secureai project files <slug>
  secureai project upload <slug> <path> [--category c]
  secureai project delete-file <slug> <name> [--confirm]
  secureai instructions <slug> [show | set <step> --system s --user u]
  secureai step <slug> <plan|write|check> [--system s] [--user u]
  secureai stats [--raw | --list]   Recent questions
  secureai settings [show | set]    Model allow-lists and defaults
    --text-models a,b  --default-text m
    --image-models a,b --default-image m
  secureai config [show | get <key> | set <key> <value> | path | keys]
  secureai serve [--addr host:port] Serve the settings API
  secureai version

Global flags:
  --json              Machine-readable output
  -m, --model <name>  Model to use (default: from settings)
  --no-markdown       Print answers as plain text
  --config <path>     Use another config file
  -q, --quiet         Less output
  -v, --verbose       Log requests to stderr

Environment:
  SECUREAI_BACKEND_URL      Backend base URL (default: %s)
  SECUREAI_SETTINGS_STORE   file, sqlite or remote
  SECUREAI_SETTINGS_PATH    settings.json or sqlite path
  SECUREAI_SERVER_ADDR      Address for 'secureai serve'
  NO_COLOR                  Disable colors

Version: %s
`

// PrintUsage prints usage information.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, config.DefaultBackendURL, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "secureai version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) and returns the command
// and its arguments. No arguments starts the TUI.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	parsed.Name = remaining[0]
	parsed.Raw = remaining[1:]

	if cmd, ok := commandNames[strings.ToLower(remaining[0])]; ok {
		return cmd, parsed
	}
	return CmdUnknown, parsed
}

// parseGlobalFlags extracts global flags from anywhere in args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}

		switch arg {
		case "--json":
			parsed.JSON = true
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--no-markdown", "--plain":
			parsed.NoMarkdown = true
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				parsed.Model = args[i]
			}
		case "--config":
			if i+1 < len(args) {
				i++
				parsed.ConfigFile = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsed.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--config="):
				parsed.ConfigFile = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsed
}
