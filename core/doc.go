// Package core holds the shared CRM contracts: configuration loading, the
// error envelope, logger and metrics contracts, and the operation observer
// used by services, workers and dispatchers. Domain packages depend on core;
// core must not depend on stores, transports or job backends.
package core
