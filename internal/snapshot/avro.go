package snapshot

import (
	"bufio"
	"context"
	"fmt"
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/linkedin/goavro/v2"
)

// avroBackend reads an Avro object container file of {key, value} records
// via goavro.NewOCFReader, a plain string->string record stream rather
// than a time-series checkpoint.
type avroBackend struct {
	path string
}

func (b *avroBackend) Load(_ context.Context) (map[string]string, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open avro %s: %w", b.path, err)
	}
	defer f.Close()

	reader, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("snapshot: new OCF reader for %s: %w", b.path, err)
	}

	out := make(map[string]string)
	for reader.Scan() {
		rec, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("snapshot: read avro record in %s: %w", b.path, err)
		}
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		key, _ := m["key"].(string)
		value, _ := m["value"].(string)
		if key != "" {
			out[key] = value
		}
	}

	cclog.Infof("[SNAPSHOT]> loaded %d keys from avro snapshot %s", len(out), b.path)
	return out, nil
}
