// Package services implements the driving port interfaces: the ingest
// pipeline, the retrieve/rank/assemble read path, bulk job
// coordination and the settings surface. Services contain the core
// business logic and orchestrate calls to driven ports (adapters).
package services
