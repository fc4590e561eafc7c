// Package oracle is a no-cgo Oracle database driver. It loads the Oracle
// Call Interface client library at runtime and drives it through runtime
// function calls, so the package builds without a C toolchain or Oracle
// headers; an Oracle client installation is only needed at run time.
//
// Basic usage:
//
//	cfg, err := oracle.ParseDSN("scott/tiger@localhost:1521/XEPDB1")
//	if err != nil { ... }
//	conn, err := oracle.Connect(cfg)
//	if err != nil { ... }
//	defer conn.Close()
//
//	rows, err := conn.Query(ctx, "SELECT first_name, salary FROM employees WHERE department_id = :id", 50)
//	if err != nil { ... }
//	for rows.Next(ctx) {
//		row := rows.Row()
//		name, _ := row.String("FIRST_NAME")
//		salary, _ := row.Float64("SALARY")
//		...
//	}
//
// Placeholders bind positionally by default; wrap an argument in Named to
// bind it by name, in Out to receive an output, in List to expand an
// IN-list, or pass Skip to leave a slot for a later named argument.
//
// With Config.Nonblocking set the session runs in non-blocking mode: every
// operation takes a context and honors its cancellation, and at most one
// operation may be in flight per connection at a time. A cancelled
// operation keeps running on the server until the client has drained it;
// the connection answers ErrContextBusy until then. Call Drain before
// process exit to join detached cleanup work.
package oracle
