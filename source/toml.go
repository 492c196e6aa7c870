package source

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// loadTOMLChannel reads a static TOML config file and extracts the
// top-level table named after the active channel. The file standing in for
// an executable module means the channel table plays the role of the
// channel function: if the file exists it must carry a table for every
// channel it is consulted under.
func loadTOMLChannel(path, channel string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var all map[string]any
	if err := toml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	sect, ok := all[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no [%s] table", ErrChannelMissing, path, channel)
	}
	m, ok := sect.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: [%s] must be a table, got %T", path, channel, sect)
	}
	return m, nil
}
