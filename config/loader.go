package config

// Loader defines the interface for configuration loaders
type Loader interface {
	// Load fills target
	Load(target any) error

	// Watch invokes callback whenever the source changes
	Watch(callback func()) error
}
