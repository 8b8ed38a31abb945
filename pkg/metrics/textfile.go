package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/common/expfmt"
)

// WriteTextfile renders the registry in the Prometheus text exposition
// format to path, via write-temp-then-rename so a concurrent reader (a
// node_exporter textfile collector) never observes a partial file.
func WriteTextfile(path string) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".metrics-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
