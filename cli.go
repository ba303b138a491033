package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// cli.go - Command-line interface for hootlink
//
// Subcommands:
// - hootlink link <obj>... (plan + validate + write the kernel image)
// - hootlink inspect <obj>... (print the computed layout, write nothing)
// - hootlink validate <obj>... (plan + validate, write nothing)
// - hootlink watch <obj>... (re-link whenever the plan or an object changes)
//
// Also supports: hootlink <obj>... (shorthand for link)

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Args       []string
	PlanPath   string // empty means the built-in reference plan
	OutputPath string
	Verbose    bool
	Quiet      bool
	Log        *zap.SugaredLogger
}

// RunCLI is the main entry point for the CLI. It determines which
// command to run based on arguments.
func RunCLI(ctx *CommandContext) error {
	if len(ctx.Args) == 0 {
		return cmdHelp(ctx)
	}

	switch ctx.Args[0] {
	case "link":
		return cmdLink(ctx, ctx.Args[1:])

	case "inspect":
		return cmdInspect(ctx, ctx.Args[1:])

	case "validate":
		return cmdValidate(ctx, ctx.Args[1:])

	case "watch":
		return cmdWatch(ctx, ctx.Args[1:])

	case "help", "--help", "-h":
		return cmdHelp(ctx)

	case "version", "--version", "-V":
		fmt.Println(versionString)
		return nil

	default:
		// Object files as the first argument are shorthand for link.
		if strings.HasSuffix(ctx.Args[0], ".o") {
			return cmdLink(ctx, ctx.Args)
		}
		return fmt.Errorf("unknown command: %s\n\nRun 'hootlink help' for usage information", ctx.Args[0])
	}
}

// loadPlan returns the plan the context selects: a plan file when one was
// given, the built-in reference plan otherwise.
func loadPlan(ctx *CommandContext) (LayoutPlan, error) {
	if ctx.PlanPath == "" {
		return DefaultPlan(), nil
	}
	return LoadPlan(ctx.PlanPath)
}

// buildImage runs the full pipeline short of serialization: load the
// plan and objects, plan the image, surface diagnostics, validate.
func buildImage(ctx *CommandContext, objPaths []string) (*Image, error) {
	plan, err := loadPlan(ctx)
	if err != nil {
		return nil, err
	}
	objs, err := LoadObjects(objPaths)
	if err != nil {
		return nil, err
	}
	img, err := PlanImage(objs, plan)
	if err != nil {
		return nil, err
	}
	reportDiagnostics(ctx.Log, img.Diagnostics)
	if err := Validate(img); err != nil {
		return nil, err
	}
	return img, nil
}

// cmdLink links the given objects into a bootable kernel image
func cmdLink(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hootlink link <object.o>...")
	}

	outputPath := ctx.OutputPath
	if outputPath == "" {
		outputPath = "kernel.elf"
	}

	img, err := buildImage(ctx, args)
	if err != nil {
		return err
	}
	if err := WriteImageFile(img, outputPath); err != nil {
		return err
	}

	if !ctx.Quiet {
		ctx.Log.Infow("image written",
			"path", outputPath,
			"entry", fmt.Sprintf("0x%x", img.EntryAddr),
			"mem", humanize.IBytes(img.MemSize()),
			"file", humanize.IBytes(img.FileSize()),
		)
	}
	return nil
}

// cmdInspect prints the computed layout without writing anything
func cmdInspect(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hootlink inspect <object.o>...")
	}

	img, err := buildImage(ctx, args)
	if err != nil {
		return err
	}

	fmt.Printf("entry %s = 0x%x\n", img.EntrySymbol, img.EntryAddr)
	fmt.Printf("%-14s %-14s %-12s %-12s %-10s %s\n", "REGION", "KIND", "BASE", "END", "ALIGN", "SIZE")
	for i := range img.Regions {
		r := &img.Regions[i]
		size := humanize.IBytes(r.Size())
		if r.Kind.Zeroed() {
			size += " (no file bytes)"
		}
		fmt.Printf("%-14s %-14s 0x%-10x 0x%-10x 0x%-8x %s\n",
			r.Name, r.Kind, r.Base, r.End, r.Align, size)
	}
	fmt.Printf("total: %s in memory, %s on disk\n",
		humanize.IBytes(img.MemSize()), humanize.IBytes(img.FileSize()))
	return nil
}

// cmdValidate plans and validates without writing anything
func cmdValidate(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hootlink validate <object.o>...")
	}

	img, err := buildImage(ctx, args)
	if err != nil {
		return err
	}
	if !ctx.Quiet {
		ctx.Log.Infow("layout ok",
			"regions", len(img.Regions),
			"entry", fmt.Sprintf("0x%x", img.EntryAddr),
		)
	}
	return nil
}

// cmdWatch re-links whenever the plan file or an input object changes
func cmdWatch(ctx *CommandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hootlink watch <object.o>...")
	}

	relink := func(changed string) {
		if changed != "" {
			ctx.Log.Infow("change detected", "path", changed)
		}
		if err := cmdLink(ctx, args); err != nil {
			// Keep watching: a broken intermediate state is normal while
			// the kernel is being rebuilt.
			ctx.Log.Errorw("link failed", "error", err)
		}
	}

	fw, err := NewFileWatcher(relink)
	if err != nil {
		return err
	}
	if ctx.PlanPath != "" {
		if err := fw.AddFile(ctx.PlanPath); err != nil {
			return err
		}
	}
	for _, obj := range args {
		if err := fw.AddFile(obj); err != nil {
			return err
		}
	}

	relink("")
	ctx.Log.Infow("watching for changes", "files", len(args))
	fw.Watch()
	return nil
}

func cmdHelp(_ *CommandContext) error {
	fmt.Fprintf(os.Stderr, `%s - kernel image layout linker

Usage:
  hootlink link <object.o>...       link objects into a bootable image
  hootlink inspect <object.o>...    print the computed layout
  hootlink validate <object.o>...   check the layout, write nothing
  hootlink watch <object.o>...      re-link on plan or object changes
  hootlink version                  print version information

Flags (before the subcommand):
  -p, --plan FILE     layout plan (.toml/.yaml); default: built-in Hootux plan
  -o, --output FILE   output image path (default kernel.elf)
  -v, --verbose       verbose mode
  -q, --quiet         suppress progress output

Environment:
  HOOTLINK_PLAN       default plan file
  HOOTLINK_VERBOSE    set to 1 to enable verbose mode
`, versionString)
	return nil
}
