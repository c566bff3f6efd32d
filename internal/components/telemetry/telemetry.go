package telemetry

import (
	"fmt"
)

// API is what every component reports through. Implementations are SlogAPI in the binaries
// and Recorder in tests.
type API interface {
	// ReportBroken reports a failure that someone has to act on.
	//
	// Ids name the component and operation that failed, like `loader.load-page` or
	// `submit.post-form`: lowercase, dot between component and operation, dashes inside a
	// name. Details such as the failing url or the wrapped error go in params, not in the id.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that the caller recovered from.
	ReportWarning(id string, params ...any)

	// ReportDebug is dropped unless verbose output is on.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a sample of a count at the current time. Samples are points in a
	// series and are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id reported through it with a namespace, the way a pipeline is
// reported under "textfx".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
