// Package main provides the entry point for rvsim, a cycle-accurate
// out-of-order RISC-V-like core simulator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/brassfork/rvooo/checker"
	"github.com/brassfork/rvooo/config"
	"github.com/brassfork/rvooo/emu"
	"github.com/brassfork/rvooo/loader"
	"github.com/brassfork/rvooo/pipeline"
)

var (
	program    = flag.String("program", "", "Path to the RISC-V ELF executable to run")
	configPath = flag.String("config", "", "Path to a JSON core configuration file (default: built-in config.Default())")
	maxCycles  = flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 = run until the program exits)")
	trace      = flag.String("trace", "", "Write a per-retirement trace to this file (\"-\" for stdout)")
	jsonStats  = flag.Bool("json-stats", false, "Print final Stats as JSON instead of a text report")
	checked    = flag.Bool("check", false, "Compare every retired instruction against the functional reference model")
	verbose    = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "rvsim: ", 0)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	if *program == "" {
		fmt.Fprintf(os.Stderr, "Usage: rvsim -program <file.elf> [options]\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(run(logger))
}

func run(logger *log.Logger) int {
	prog, err := loader.Load(*program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvsim: error loading %s: %v\n", *program, err)
		return 1
	}
	logger.Printf("loaded %s: entry=0x%x segments=%d", *program, prog.EntryPoint, len(prog.Segments))

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvsim: error loading config: %v\n", err)
			return 1
		}
	}

	mem := emu.NewMemory()
	prog.LoadInto(mem)

	var opts []pipeline.Option
	var traceFile *os.File
	var chk *checker.Checker

	if *checked || *trace != "" {
		chk = checker.New(prog.EntryPoint, mem)
		opts = append(opts, chk.Hook())
	}

	if *trace != "" {
		if *trace == "-" {
			if chk != nil {
				chk.Trace = os.Stdout
			}
		} else {
			traceFile, err = os.Create(*trace)
			if err != nil {
				fmt.Fprintf(os.Stderr, "rvsim: error creating trace file: %v\n", err)
				return 1
			}
			defer func() { _ = traceFile.Close() }()
			if chk != nil {
				chk.Trace = traceFile
			}
		}
	}

	p := pipeline.New(cfg, mem, opts...)
	p.SetPC(prog.EntryPoint)

	exitCode := p.Run(*maxCycles)

	stats := p.Stats()
	if *jsonStats {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(struct {
			ExitCode int            `json:"exit_code"`
			Stats    pipeline.Stats `json:"stats"`
			CPI      float64        `json:"cpi"`
		}{exitCode, stats, stats.CPI()})
	} else {
		fmt.Printf("program:        %s\n", *program)
		fmt.Printf("exit code:      %d\n", exitCode)
		fmt.Printf("cycles:         %d\n", stats.Cycles)
		fmt.Printf("instructions:   %d\n", stats.Instructions)
		fmt.Printf("cpi:            %.3f\n", stats.CPI())
		fmt.Printf("branches:       %d\n", stats.Branches)
		fmt.Printf("mispredictions: %d\n", stats.Mispredictions)
		fmt.Printf("flushes:        %d\n", stats.Flushes)
	}

	if chk != nil {
		logger.Printf("checker: %d mismatches", len(chk.Mismatches()))
		for _, m := range chk.Mismatches() {
			fmt.Fprintf(os.Stderr, "rvsim: checker mismatch: %s\n", m)
		}
		if !chk.OK() {
			return 1
		}
	}

	return exitCode
}
