package compositor

import "os"

var debug bool

func init() {
	debug = os.Getenv("COMPOSITOR_DEBUG") != ""
}
