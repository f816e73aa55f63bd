package config

import (
	"fmt"
	"os"
)

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(viewerTemplate), 0o600)
}

const viewerTemplate = `executable = "imod"
# metrics_addr = "127.0.0.1:9464"

host = "127.0.0.1"
port = 0
accept_timeout = "60s"
read_timeout = "2m"
write_timeout = "15s"

# "single" takes one bounded read per response; "delimited" frames both
# directions with the delimiter byte. The delimiter defaults to NUL and must
# not be a newline or an indent byte.
framing = "single"
read_buffer_size = 1024
# delimiter = "\u0000"
max_response_bytes = 1048576

inherit_env = true
env = []
args = []
`
