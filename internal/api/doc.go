// Package api exposes the job orchestrator over HTTP and provides the client
// the CLI uses to talk to a running daemon.
//
// # Routes
//
//	POST   /api/jobs               create and schedule a job
//	GET    /api/jobs               list jobs, optionally ?status=&type=
//	GET    /api/jobs/{id}          full job snapshot
//	GET    /api/jobs/{id}/status   progress snapshot
//	POST   /api/jobs/{id}/cancel   cancel a pending or running job
//	DELETE /api/jobs/{id}          same as cancel
//	POST   /api/jobs/cleanup       drop old terminal jobs
//	GET    /api/history            archived jobs
//	GET    /api/history/{id}       one archived job
//	GET    /api/status             daemon and dependency report
//	GET    /metrics                Prometheus exposition
//
// Every /api route requires "Authorization: Bearer <token>" when a token is
// configured. Errors are returned as ErrorResponse with the error kind from
// services.Kind so clients can branch without parsing messages.
package api
