package runner

import (
	"io"
	"os"
	"strings"

	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/levels"
	errorutil "github.com/projectdiscovery/utils/errors"
	fileutil "github.com/projectdiscovery/utils/file"

	"github.com/contigmem/contig"
)

type Options struct {
	Regions  string
	Routes   string
	Config   string
	PageSize string
	Allocs   goflags.StringSlice
	Infos    goflags.StringSlice
	Output   string
	JSON     bool
	Verbose  bool
	Silent   bool
	// internal/unexported fields
	pageSize uint64
}

func ParseFlags() *Options {
	opts := &Options{}
	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription(`Carve aligned chunks out of boot-reserved contiguous memory regions.`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVarP(&opts.Regions, "regions", "r", "", "region list string (ex: 'reg1=64M:bf;reg2=32M@0x100000:bf')"),
		flagSet.StringVarP(&opts.Routes, "routes", "m", "", "routing rules string (ex: 'foo=reg1;*/*=reg2,reg1')"),
		flagSet.StringVar(&opts.Config, "config", "", "contig config file carrying the region and route strings"),
		flagSet.StringVarP(&opts.PageSize, "page-size", "ps", "", "allocation granularity (default 4K)"),
	)

	flagSet.CreateGroup("request", "Request",
		flagSet.StringSliceVarP(&opts.Allocs, "alloc", "a", nil, "allocation request in dev[/kind]:size[@alignment] format (comma-separated)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.StringSliceVarP(&opts.Infos, "info", "i", nil, "region info request in dev[/kind] format (comma-separated)", goflags.CommaSeparatedStringSliceOptions),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&opts.Output, "output", "o", "", "output file to write allocation results"),
		flagSet.BoolVarP(&opts.JSON, "json", "j", false, "write results as JSON objects"),
		flagSet.BoolVarP(&opts.Verbose, "verbose", "v", false, "display verbose output"),
		flagSet.BoolVar(&opts.Silent, "silent", false, "display results only"),
		flagSet.CallbackVar(printVersion, "version", "display contig version"),
	)

	flagSet.CreateGroup("update", "Update",
		flagSet.CallbackVarP(GetUpdateCallback(), "update", "up", "update contig to latest version"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("Could not read flags: %s\n", err)
	}

	if opts.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	} else if opts.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	showBanner()

	if opts.Config != "" {
		cfg := readConfig(opts.Config)
		if opts.Regions == "" {
			opts.Regions = cfg.Regions
		}
		if opts.Routes == "" {
			opts.Routes = cfg.Routes
		}
	}

	opts.pageSize = contig.DefaultPageSize
	if opts.PageSize != "" {
		pageSize, err := contig.ParseSize(opts.PageSize)
		if err != nil {
			gologger.Fatal().Msgf("Could not parse page-size: %s\n", err)
		}
		opts.pageSize = pageSize
	}

	// read extra allocation requests from stdin, one per line
	if fileutil.HasStdin() {
		bin, err := io.ReadAll(os.Stdin)
		if err != nil {
			gologger.Error().Msgf("failed to read input from stdin got %v", err)
		}
		opts.Allocs = append(opts.Allocs, strings.Fields(string(bin))...)
	}

	if opts.Regions == "" {
		gologger.Fatal().Msgf("contig: no regions configured")
	}

	return opts
}

// NewAllocator builds the allocator from the parsed options.
func (opts *Options) NewAllocator() (*contig.CMA, error) {
	return contig.New(&contig.Options{
		Regions:  opts.Regions,
		Routes:   opts.Routes,
		PageSize: opts.pageSize,
	})
}

// ParseAllocSpec parses a dev[/kind]:size[@alignment] request into the
// wire-request form used for results.
func ParseAllocSpec(spec string) (*contig.AllocRequest, error) {
	target, sizes, found := strings.Cut(spec, ":")
	if !found {
		return nil, errorutil.NewWithTag("contig", "expecting dev[/kind]:size[@alignment] got %v", spec)
	}
	req := &contig.AllocRequest{}
	req.Name, req.Kind, _ = strings.Cut(target, "/")

	sizeStr, alignStr, hasAlign := strings.Cut(sizes, "@")
	size, err := contig.ParseSize(sizeStr)
	if err != nil {
		return nil, err
	}
	req.Size = size
	if hasAlign {
		alignment, err := contig.ParseSize(alignStr)
		if err != nil {
			return nil, err
		}
		req.Alignment = alignment
	}
	return req, nil
}

func printVersion() {
	gologger.Info().Msgf("Current version: %s", version)
	os.Exit(0)
}
