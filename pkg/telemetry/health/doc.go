// Package health provides the gateway's liveness, readiness and version
// endpoints.
//
// Liveness only reports that the process runs. Readiness runs every
// registered check concurrently, each under its own timeout, and answers 503
// when any fails. Typical checks are BackendTokenCheck, which fails while no
// backend bearer token can be obtained, and ModelsCheck.
//
//	checker := health.New(5 * time.Second)
//	checker.Register("backend_token", health.BackendTokenCheck(tokens))
//	checker.Register("models", health.ModelsCheck(func() int { return len(cfg.Models) }))
//	health.Register(mux, checker, version, commit, buildTime)
package health
