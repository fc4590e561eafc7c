package oracle

import (
	"context"
)

// endTransaction runs the commit or rollback round trip through the
// connection's service context, so in non-blocking mode it cooperates with
// cancellation like any other operation.
func (c *Connection) endTransaction(ctx context.Context, op string) error {
	if c.closed.Load() {
		return interfaceErr("connection is closed")
	}
	status, err := c.sc.exec(ctx, op, func() int32 {
		if op == "commit" {
			return c.sc.api.TransCommit(c.sc.svc, c.sc.errh, modeDefault)
		}
		return c.sc.api.TransRollback(c.sc.svc, c.sc.errh, modeDefault)
	})
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return c.sc.fail(status)
	}
	return nil
}
