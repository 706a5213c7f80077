// Package storage ties a numass storage root to its consumers.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Backend   │────▶│    Tree     │────▶│   Loader    │
//	│ local/sftp/ │     │  Shelves +  │     │  fragments  │
//	│    zip      │     │  Loaders    │     │  (lazy)     │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           │                   │
//	                           ▼                   ▼
//	                    ┌─────────────┐     ┌─────────────┐
//	                    │   Journal   │     │    Codec    │
//	                    │  (DuckDB)   │     │ classic/    │
//	                    └─────────────┘     │ proto/legacy│
//	                                        └─────────────┘
//
// The Service opens the backend named by the configuration, scans it into
// a Tree, and exposes the consumer surface: ListPoints, Pull and
// PushNumassData. Pushes are recorded in the journal when it is enabled.
package storage
