package runner

import (
	"github.com/projectdiscovery/gologger"
	updateutils "github.com/projectdiscovery/utils/update"
)

var banner = (`
                    __  _
  _________  ____  / /_(_)___ _
 / ___/ __ \/ __ \/ __/ / __ ` + "`" + `/
/ /__/ /_/ / / / / /_/ / /_/ /
\___/\____/_/ /_/\__/_/\__, /
                      /____/
`)

var version = "v0.0.1"

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", banner)
}

// GetUpdateCallback returns a callback function that updates contig
func GetUpdateCallback() func() {
	return func() {
		showBanner()
		updateutils.GetUpdateToolCallback("contig", version)()
	}
}
