package metrics

import (
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// RegisterDBPool exports connection pool statistics of db, labelled db_name=name.
// Registering the same name twice is a no-op.
func RegisterDBPool(name string, db *sql.DB) error {
	return register(collectors.NewDBStatsCollector(db, name))
}

// RegisterRedisPool exports go-redis pool statistics, labelled pool=name.
func RegisterRedisPool(name string, client *redis.Client) error {
	labels := prometheus.Labels{"pool": name}
	gauge := func(metric, help string, value func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "sms_redis_pool_" + metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return float64(value(client.PoolStats()))
		})
	}

	pool := []prometheus.Collector{
		gauge("total_conns", "Connections currently in the pool",
			func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		gauge("idle_conns", "Idle connections in the pool",
			func(s *redis.PoolStats) uint32 { return s.IdleConns }),
		gauge("hits", "Times a free connection was found in the pool",
			func(s *redis.PoolStats) uint32 { return s.Hits }),
		gauge("misses", "Times a free connection was not found in the pool",
			func(s *redis.PoolStats) uint32 { return s.Misses }),
		gauge("timeouts", "Times a wait for a connection timed out",
			func(s *redis.PoolStats) uint32 { return s.Timeouts }),
	}
	for _, c := range pool {
		if err := register(c); err != nil {
			return err
		}
	}
	return nil
}

func register(c prometheus.Collector) error {
	if err := prometheus.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}
