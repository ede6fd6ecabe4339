package contig

import (
	"fmt"
	"os"
	"strings"

	"github.com/projectdiscovery/gologger"
	sliceutil "github.com/projectdiscovery/utils/slice"
	"gopkg.in/yaml.v3"
)

const (
	// maxRegions bounds the number of regions a single config may declare.
	maxRegions = 16
	// maxRoutes bounds the number of routing rules a single config may declare.
	maxRoutes = 64
)

// DefaultRegions and DefaultRoutes are the sample config strings written by
// GenerateSample. They mirror the canonical documentation example.
var (
	DefaultRegions = "reg1=64M:bf;reg2=32M@0x100000:bf;reg3=64M/1M:bf"
	DefaultRoutes  = "foo=reg1;bar/firmware=reg3;/*=reg2;baz/*=reg1,reg2;*/*=reg2,reg1"
)

// Config carries the two textual parameters of the allocator. The strings
// themselves are the stable external interface; the file is only a vehicle.
type Config struct {
	Regions string `yaml:"regions"`
	Routes  string `yaml:"routes"`
}

// NewConfig reads config from file
func NewConfig(filePath string) (*Config, error) {
	bin, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err = yaml.Unmarshal(bin, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateSample creates a sample yaml file with default/sample values
func GenerateSample(filePath string) error {
	cfg := Config{
		Regions: DefaultRegions,
		Routes:  DefaultRoutes,
	}
	bin, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, bin, 0644)
}

// parseRegions parses a region list string:
//
//	regions ::= region [ ';' regions ] [ ';' ]
//	region  ::= name '=' size [ '@' start ] [ '/' alignment ]
//	                         [ ':' [ strategy ] [ '(' params ')' ] ]
//
// size, start and alignment accept decimal or hex numbers with an optional
// K/M/G suffix. Any error rejects the whole string.
func parseRegions(s string, pageSize uint64) ([]*Region, error) {
	entries := strings.Split(s, ";")
	if n := len(entries); n > 0 && entries[n-1] == "" {
		entries = entries[:n-1]
	}
	if len(entries) > maxRegions {
		return nil, fmt.Errorf("%w: too many regions", ErrNoSpace)
	}

	regions := make([]*Region, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		reg, err := parseRegionEntry(entry, pageSize)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[reg.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate region name %q", ErrInvalidArgument, reg.Name)
		}
		seen[reg.Name] = struct{}{}
		regions = append(regions, reg)
	}
	return regions, nil
}

func parseRegionEntry(entry string, pageSize uint64) (*Region, error) {
	name, rest, found := strings.Cut(entry, "=")
	if !found {
		return nil, fmt.Errorf("%w: expecting '=' near %q", ErrInvalidArgument, entry)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty region name near %q", ErrInvalidArgument, entry)
	}

	size, rest, err := parseMem(rest)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: zero region size near %q", ErrInvalidArgument, entry)
	}

	var start, alignment uint64
	if strings.HasPrefix(rest, "@") {
		start, rest, err = parseMem(rest[1:])
		if err != nil {
			return nil, err
		}
	}
	if strings.HasPrefix(rest, "/") {
		alignment, rest, err = parseMem(rest[1:])
		if err != nil {
			return nil, err
		}
		if alignment != 0 && !isPow2(alignment) {
			return nil, fmt.Errorf("%w: alignment %#x is not a power of two", ErrInvalidArgument, alignment)
		}
	}

	var strategyName, strategyParams string
	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		if open := strings.IndexByte(rest, '('); open >= 0 {
			strategyName = rest[:open]
			rest = rest[open+1:]
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return nil, fmt.Errorf("%w: expecting ')' near %q", ErrInvalidArgument, entry)
			}
			strategyParams = rest[:end]
			rest = rest[end+1:]
		} else {
			strategyName = rest
			rest = ""
		}
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: expecting ';' or end of entry near %q", ErrInvalidArgument, rest)
	}

	if alignment == 0 {
		alignment = pageSize
	} else {
		alignment = alignUp(alignment, pageSize)
	}
	start = alignUp(start, alignment)
	size = alignUp(size, pageSize)
	if size == 0 || start+size < start {
		return nil, fmt.Errorf("%w: region %q does not fit the address space", ErrInvalidArgument, name)
	}

	region := &Region{
		Name:           name,
		Start:          start,
		Size:           size,
		Alignment:      alignment,
		StrategyName:   strategyName,
		StrategyParams: strategyParams,
	}
	region.freeSpace.Store(size)
	return region, nil
}

// routePattern is a single pattern within a routing rule. A pattern with no
// device part (one that started with '/') reuses the device match outcome of
// the textually preceding pattern.
type routePattern struct {
	dev     string
	hasDev  bool
	kind    string
	hasKind bool
}

// routeRule maps a pattern list to an ordered list of region names.
type routeRule struct {
	patterns []routePattern
	regions  []string
}

// parseRoutes parses a routing rules string:
//
//	rules    ::= rule [ ';' rules ] [ ';' ]
//	rule     ::= patterns '=' region-names
//	patterns ::= pattern (',' pattern)*
//	pattern  ::= device-glob [ '/' kind-glob ] | '/' kind-glob
func parseRoutes(s string) ([]routeRule, error) {
	entries := strings.Split(s, ";")
	if n := len(entries); n > 0 && entries[n-1] == "" {
		entries = entries[:n-1]
	}
	if len(entries) > maxRoutes {
		return nil, fmt.Errorf("%w: too many routing rules", ErrNoSpace)
	}

	rules := make([]routeRule, 0, len(entries))
	for _, entry := range entries {
		lhs, rhs, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("%w: expecting '=' near %q", ErrInvalidArgument, entry)
		}

		var rule routeRule
		for _, p := range strings.Split(lhs, ",") {
			var pat routePattern
			if strings.HasPrefix(p, "/") {
				pat.kind = p[1:]
				pat.hasKind = true
			} else if dev, kind, ok := strings.Cut(p, "/"); ok {
				pat.dev = dev
				pat.hasDev = true
				pat.kind = kind
				pat.hasKind = true
			} else {
				pat.dev = p
				pat.hasDev = true
			}
			rule.patterns = append(rule.patterns, pat)
		}

		for _, name := range strings.Split(rhs, ",") {
			if name == "" {
				return nil, fmt.Errorf("%w: empty region name in rule %q", ErrInvalidArgument, entry)
			}
			rule.regions = append(rule.regions, name)
		}
		if len(rule.regions) == 0 {
			return nil, fmt.Errorf("%w: rule %q maps to no regions", ErrInvalidArgument, entry)
		}
		if deduped := sliceutil.Dedupe(rule.regions); len(deduped) != len(rule.regions) {
			gologger.Warning().Msgf("rule %q lists %v region(s) more than once", entry, len(rule.regions)-len(deduped))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
