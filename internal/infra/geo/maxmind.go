package geo

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// MaxMind resolves addresses from a local GeoLite2/GeoIP2 City database. It never provides an ISP.
type MaxMind struct {
	mu     sync.RWMutex
	reader cityReader
	log    *zap.Logger
}

// OpenMaxMind opens the database at path.
func OpenMaxMind(path string, log *zap.Logger) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open %s: %w", path, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	meta := reader.Metadata()
	log.Info("geoip database loaded", zap.String("type", meta.DatabaseType), zap.Uint("epoch", meta.BuildEpoch))
	return &MaxMind{reader: reader, log: log}, nil
}

func (m *MaxMind) Lookup(_ context.Context, ip string) *Result {
	if !IsPublic(ip) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reader == nil {
		return nil
	}

	record, err := m.reader.City(net.ParseIP(ip))
	if err != nil {
		m.log.Warn("geoip lookup failed", zap.Error(err))
		return nil
	}

	res := &Result{
		Country:  record.Country.IsoCode,
		City:     record.City.Names["en"],
		Timezone: record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		res.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		res.Loc = fmt.Sprintf("%.4f,%.4f", record.Location.Latitude, record.Location.Longitude)
	}
	if res.Empty() {
		return nil
	}
	return res
}

// Close releases the database.
func (m *MaxMind) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader == nil {
		return nil
	}
	err := m.reader.Close()
	m.reader = nil
	return err
}
