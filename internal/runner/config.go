package runner

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/projectdiscovery/gologger"

	"github.com/contigmem/contig"
)

// readConfig loads a yaml config file carrying the region and route strings.
// Config errors are fatal: the whole config is rejected, never partially
// installed.
func readConfig(filePath string) *contig.Config {
	bin, err := os.ReadFile(filePath)
	if err != nil {
		gologger.Fatal().Msgf("failed to read %v got: %v", filePath, err)
	}
	var cfg contig.Config
	if err := yaml.Unmarshal(bin, &cfg); err != nil {
		gologger.Fatal().Msgf("contig yaml configuration syntax error.\n %v\n.", yaml.FormatError(err, true, true))
	}
	return &cfg
}
