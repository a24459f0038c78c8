// Package api documents the EnvSync HTTP API. Handlers live in api/handlers.
//
// # API Overview
//
// EnvSync exposes the durable environment-variable store over REST:
//
//	GET    /api/env                        list all variables ({total, items})
//	GET    /api/env/{key}                  read one variable (cache first)
//	POST   /api/env                        create (201, 400 when the key exists)
//	PUT    /api/env/{key}                  partial update
//	DELETE /api/env/{key}                  delete (204)
//	POST   /api/env/sync/db-to-redis       rebuild the cache namespace from the store
//	POST   /api/env/load/from-env-file     insert keys missing from the store
//	POST   /api/env/export/to-env-file     write the store to the bootstrap file
//	GET    /api/env/backups                list bootstrap file backups
//	POST   /api/env/backups/restore        restore a backup over the bootstrap file
//
//	POST   /users/signup                   register
//	POST   /login/access-token             OAuth2 password flow, returns a bearer token
//	GET    /users/me                       current user
//
//	GET    /, /health, /healthz, /ready, /version
//
// # Authentication
//
// /api/env and /users/me require a bearer token:
//
//	Authorization: Bearer <access_token>
//
// Mutating /api/env routes additionally require a superuser.
//
// # Base URL
//
// The default base URL is http://localhost:8080; Prometheus metrics are served
// on a separate port (default 9091) at /metrics.
package api
