package config

import "time"

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	ConnectTimeout      = 5 * time.Second
	NetworkDialTimeout  = 5 * time.Second

	// Connection retry
	MaxConnectRetries    = 3
	ConnectRetryInterval = time.Second

	// Result caps (the store never hands back more than these per query)
	MaxResultSetSize = 10000
	MaxSampleSize    = 100

	// Cache settings
	CardCacheSize = 10000
)

// Seeding Constants
const (
	SeedWorkers = 4
)
