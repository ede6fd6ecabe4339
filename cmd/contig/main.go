package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/projectdiscovery/gologger"

	"github.com/contigmem/contig"
	"github.com/contigmem/contig/internal/runner"
)

func main() {
	opts := runner.ParseFlags()

	allocator, err := opts.NewAllocator()
	if err != nil {
		gologger.Fatal().Msgf("failed to parse contig config got %v", err)
	}

	output := getOutputWriter(opts.Output)
	defer closeOutput(output, opts.Output)

	for _, spec := range opts.Infos {
		dev, kind := splitTarget(spec)
		info, err := allocator.Info(dev, kind)
		if err != nil {
			gologger.Error().Msgf("info %v: %v", spec, err)
			continue
		}
		writeInfo(output, opts.JSON, dev, kind, info)
	}

	var allocated []uint64
	for _, spec := range opts.Allocs {
		req, err := runner.ParseAllocSpec(spec)
		if err != nil {
			gologger.Error().Msgf("invalid request %v: %v", spec, err)
			continue
		}
		addr, err := allocator.Alloc(req.Name, req.Kind, req.Size, req.Alignment)
		if err != nil {
			gologger.Error().Msgf("alloc %v: %v", spec, err)
			continue
		}
		req.Start = addr
		allocated = append(allocated, addr)
		writeAlloc(output, opts.JSON, req)
	}

	for _, addr := range allocated {
		if status := allocator.Release(addr); status != contig.ReleaseFreed {
			gologger.Warning().Msgf("release(%#x): %v", addr, status)
		}
	}
	if err := allocator.Close(); err != nil {
		gologger.Error().Msgf("teardown failed: %v", err)
	}
}

func splitTarget(spec string) (string, string) {
	dev, kind, _ := strings.Cut(spec, "/")
	return dev, kind
}

func writeAlloc(w io.Writer, asJSON bool, req *contig.AllocRequest) {
	if asJSON {
		bin, err := json.Marshal(map[string]interface{}{
			"name":      req.Name,
			"kind":      req.Kind,
			"size":      req.Size,
			"alignment": req.Alignment,
			"start":     req.Start,
		})
		if err != nil {
			gologger.Error().Msgf("failed to marshal result got %v", err)
			return
		}
		fmt.Fprintf(w, "%s\n", bin)
		return
	}
	fmt.Fprintf(w, "%#x\n", req.Start)
}

func writeInfo(w io.Writer, asJSON bool, dev, kind string, info contig.Info) {
	if asJSON {
		bin, err := json.Marshal(map[string]interface{}{
			"name":        dev,
			"kind":        kind,
			"lower_bound": info.LowerBound,
			"upper_bound": info.UpperBound,
			"total_size":  info.TotalSize,
			"count":       info.Count,
		})
		if err != nil {
			gologger.Error().Msgf("failed to marshal info got %v", err)
			return
		}
		fmt.Fprintf(w, "%s\n", bin)
		return
	}
	fmt.Fprintf(w, "%s/%s: %d region(s), %#x bytes in [%#x, %#x)\n",
		dev, kind, info.Count, info.TotalSize, info.LowerBound, info.UpperBound)
}

// getOutputWriter returns the appropriate output writer
func getOutputWriter(outputPath string) io.Writer {
	if outputPath != "" {
		fs, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			gologger.Fatal().Msgf("failed to open output file %v got %v", outputPath, err)
		}
		return fs
	}
	return os.Stdout
}

// closeOutput closes the output writer if it's a file
func closeOutput(output io.Writer, outputPath string) {
	if outputPath != "" {
		if closer, ok := output.(io.Closer); ok {
			closer.Close()
		}
	}
}
