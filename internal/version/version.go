package version

import "strings"

// SDKName identifies this client in envelope headers and auth headers.
const SDKName = "outpost-go"

const Version = "0.4.0"

var Environment string

func init() {
	if strings.Contains(Version, "dev") {
		Environment = "development"
	} else {
		Environment = "production"
	}
}
