package domain

// KeyPrefix namespaces every key docqa writes to the key-value store.
const KeyPrefix = "docqa:"

// Pipeline defaults used when configuration leaves a value unset.
const (
	DefaultMaxWords     = 100
	DefaultWordsPerPage = 500
	DefaultTopK         = 3
	DefaultMaxTopK      = 20
)
