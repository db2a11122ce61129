// Package rlimit raises the process open-file limit (RLIMIT_NOFILE) so a
// run can hold one descriptor per connection plus a fixed overhead.
//
// Failure is never fatal. The negotiator logs the degraded limit and the
// run continues with whatever the OS allows.
package rlimit
