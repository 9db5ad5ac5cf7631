package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// NewStoreFileSize reports the on-disk size of an embedded database file and its -wal sidecar.
func NewStoreFileSize(path string) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Name:      "store_file_bytes",
			Help:      "Size of the embedded chunk store, write-ahead log included",
		},
		func() float64 { return float64(fileSize(path) + fileSize(path+"-wal")) },
	)
}

// RegisterStoreFileSize registers NewStoreFileSize(path) with the default registry.
func RegisterStoreFileSize(path string) {
	prometheus.MustRegister(NewStoreFileSize(path))
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
