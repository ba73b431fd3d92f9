// Package version carries build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/lgc202/go-mistral/version.gitVersion=v0.3.0 \
//	  -X github.com/lgc202/go-mistral/version.gitCommit=$(git rev-parse HEAD)"
//
// The values feed the CLI's version command and the client User-Agent.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/gosuri/uitable"
)

// Product is the name reported in the User-Agent header.
const Product = "go-mistral"

var (
	// gitVersion is vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD].
	gitVersion = "v0.0.0-master+$Format:%h$"
	// buildDate is ISO8601, the output of $(date -u +'%Y-%m-%dT%H:%M:%SZ').
	buildDate    = "1970-01-01T00:00:00Z"
	gitCommit    = "$Format:%H$"
	gitTreeState = "" // clean or dirty
)

type Info struct {
	GitVersion   string `json:"gitVersion" yaml:"gitVersion"`
	GitCommit    string `json:"gitCommit" yaml:"gitCommit"`
	GitTreeState string `json:"gitTreeState,omitempty" yaml:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate" yaml:"buildDate"`
	GoVersion    string `json:"goVersion" yaml:"goVersion"`
	Compiler     string `json:"compiler" yaml:"compiler"`
	Platform     string `json:"platform" yaml:"platform"`
}

func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// ShortString is the bare version number.
func (info Info) ShortString() string {
	return info.GitVersion
}

func (info Info) ToJSONIndent() (string, error) {
	s, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal version info: %w", err)
	}
	return string(s), nil
}

// Text renders the info as a right-aligned two column table.
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	table.AddRow("gitCommit:", info.GitCommit)
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("compiler:", info.Compiler)
	table.AddRow("platform:", info.Platform)
	return table.String()
}

// UserAgent formats the info as "go-mistral/<version> (<go version>; <platform>)".
func (info Info) UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s)", Product, info.String(), info.GoVersion, info.Platform)
}

func Get() Info {
	return Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent is Get().UserAgent().
func UserAgent() string { return Get().UserAgent() }
