// Package httpapi exposes the Engine over HTTP: the passwordless login flow
// under /api/auth, the audit trail under /api/admin/audit-logs, and a health
// check. Routing is chi with CORS; everything that is not explicitly public
// sits behind the authorization gate from the middleware package.
//
// Logout and /api/auth/me deliberately bypass the gate: logout must clear
// the client cookie no matter what state the server holds, and me reports
// isAuthenticated=false instead of erroring.
package httpapi
