package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// A layout linker for the Hootux kernel: places compiled objects into the
// fixed image layout the boot loader and the early-boot code agree on.

const versionString = "hootlink 0.1.0"

// VerboseMode enables byte-level debug output from the serializer
var VerboseMode bool

// QuietMode suppresses progress output
var QuietMode bool

func main() {
	// NOTE: Go's flag package stops parsing at the first non-flag argument
	// So flags must come BEFORE the subcommand: hootlink -p plan.toml link kernel.o
	var planFlag = flag.String("p", env.Str("HOOTLINK_PLAN"), "layout plan file (.toml/.yaml)")
	var planLongFlag = flag.String("plan", env.Str("HOOTLINK_PLAN"), "layout plan file (.toml/.yaml)")
	var outputFlag = flag.String("o", "", "output image path")
	var outputLongFlag = flag.String("output", "", "output image path")
	var verbose = flag.Bool("v", env.Bool("HOOTLINK_VERBOSE"), "verbose mode")
	var verboseLong = flag.Bool("verbose", env.Bool("HOOTLINK_VERBOSE"), "verbose mode")
	var quiet = flag.Bool("q", false, "suppress progress output")
	var quietLong = flag.Bool("quiet", false, "suppress progress output")
	var versionShort = flag.Bool("V", false, "print version information and exit")
	var version = flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version || *versionShort {
		fmt.Println(versionString)
		os.Exit(0)
	}

	VerboseMode = *verbose || *verboseLong
	QuietMode = *quiet || *quietLong

	planPath := *planFlag
	if *planLongFlag != "" {
		planPath = *planLongFlag
	}
	outputPath := *outputFlag
	if *outputLongFlag != "" {
		outputPath = *outputLongFlag
	}

	log := newDiagLogger(VerboseMode)
	defer log.Sync()

	ctx := &CommandContext{
		Args:       flag.Args(),
		PlanPath:   planPath,
		OutputPath: outputPath,
		Verbose:    VerboseMode,
		Quiet:      QuietMode,
		Log:        log,
	}

	if err := RunCLI(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}
