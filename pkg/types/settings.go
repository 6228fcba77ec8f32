package types

// SettingsStore is a small key/value persistence outside the relational cache.
// Load returns ErrNotFound for a key that was never saved.
type SettingsStore interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, error)
}
