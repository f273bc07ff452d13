// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// coordinator needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Pusher]: Delivers one payload to a participant endpoint
//   - [OfflineStore]: Opens the per-participant offline log
//   - [OfflineLog]: Append-only durable buffer for one participant
//   - [RegistryRepository]: Persists and loads the registry snapshot
//   - [Clock]: Source of "now" for timestamps
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (file system, TCP, zerolog, etc.).
package ports
