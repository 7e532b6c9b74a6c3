package parse

import (
	"fmt"

	"github.com/corvaxen/grecurl/hostreg"
	"github.com/temoto/robotstxt"
)

// ParseRobots compiles a fetched robots.txt body into a
// hostreg.RobotsPolicy for userAgent. A robots.txt that fails to
// parse is treated as allow-all per convention (a malformed or
// unreachable robots.txt is not itself a fatal condition), returning
// a loaded, permissive policy rather than an error. Per-host caching
// lives in hostreg.Host, so this function is a pure compile step.
func ParseRobots(body []byte, userAgent string) hostreg.RobotsPolicy {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return hostreg.NewRobotsPolicy(func(string) bool { return true }, nil)
	}

	group := data.FindGroup(userAgent)
	return hostreg.NewRobotsPolicy(group.Test, data.Sitemaps)
}
